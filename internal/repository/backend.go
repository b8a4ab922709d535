package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timetable-collator/internal/model"
	"timetable-collator/pkg/objectstore"
)

// Backend 文档存储后端，key 为 "/" 分隔的相对路径
type Backend interface {
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// ── 文件系统 ──

type fsBackend struct {
	root string
}

// NewFSBackend 以 root 为根目录的文件系统后端
func NewFSBackend(root string) Backend {
	return &fsBackend{root: root}
}

func (b *fsBackend) path(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}

// Put 先写临时文件再重命名，避免读者看到半个文档
func (b *fsBackend) Put(_ context.Context, key string, data []byte) error {
	p := b.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("写入 %s 失败: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("写入 %s 失败: %w", key, err)
	}
	return os.Rename(tmp.Name(), p)
}

func (b *fsBackend) Delete(_ context.Context, key string) error {
	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("删除 %s 失败: %w", key, err)
	}
	return nil
}

func (b *fsBackend) List(_ context.Context, prefix string) ([]string, error) {
	dir := b.path(prefix)
	if !strings.HasSuffix(prefix, "/") {
		dir = filepath.Dir(dir)
	}
	var keys []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("列出 %s 失败: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// ── PostgreSQL ──

type postgresBackend struct {
	db *gorm.DB
}

// NewPostgresBackend 以 documents 表（jsonb）存储文档
func NewPostgresBackend(db *gorm.DB) Backend {
	return &postgresBackend{db: db}
}

func (b *postgresBackend) Put(ctx context.Context, key string, data []byte) error {
	doc := &model.Document{Key: key, Body: data}
	return b.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
		}).
		Create(doc).Error
}

func (b *postgresBackend) Delete(ctx context.Context, key string) error {
	return b.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&model.Document{}).Error
}

func (b *postgresBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("key LIKE ?", escapeLike(prefix)+"%").
		Order("key").
		Pluck("key", &keys).Error
	return keys, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

// ── 对象存储 ──

type objectBackend struct {
	client *objectstore.Client
}

// NewObjectBackend 以 MinIO 对象存储文档
func NewObjectBackend(client *objectstore.Client) Backend {
	return &objectBackend{client: client}
}

func (b *objectBackend) Put(ctx context.Context, key string, data []byte) error {
	return b.client.PutJSON(ctx, key, data)
}

func (b *objectBackend) Delete(ctx context.Context, key string) error {
	return b.client.Remove(ctx, key)
}

func (b *objectBackend) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := b.client.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}
