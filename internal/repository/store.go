package repository

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/bytedance/sonic"

	"timetable-collator/internal/model"
)

// ── 产物文档布局 ──────────────────────────────────────────
//
//   <YYYY-YYYY>/modules/<code>.json                    规范模块
//   <YYYY-YYYY>/moduleList.json                        精简模块列表
//   <YYYY-YYYY>/moduleInfo.json                        检索索引
//   <YYYY-YYYY>/aliases.json                           合并后的别名
//   <YYYY-YYYY>/semesters/<n>/venueInformation.json    场地占用
//   <YYYY-YYYY>/semesters/<n>/venues.json              场地列表
// ─────────────────────────────────────────────────────────────

// Store 产物持久化接口，所有文档按学年划分
type Store interface {
	WriteModule(ctx context.Context, acadYear string, module model.Module) error
	WriteModuleList(ctx context.Context, acadYear string, list []model.ModuleCondensed) error
	WriteModuleInformation(ctx context.Context, acadYear string, info []model.ModuleInformation) error
	WriteVenueInfo(ctx context.Context, acadYear string, semester int, info model.VenueInfo) error
	WriteVenueList(ctx context.Context, acadYear string, semester int, venues []string) error
	WriteAliases(ctx context.Context, acadYear string, aliases map[string][]string) error
	DeleteModule(ctx context.Context, acadYear, code string) error
	ListKnownModuleCodes(ctx context.Context, acadYear string) ([]string, error)
}

type documentStore struct {
	backend Backend
}

// NewDocumentStore 基于任意 Backend 的文档存储
func NewDocumentStore(backend Backend) Store {
	return &documentStore{backend: backend}
}

func (s *documentStore) WriteModule(ctx context.Context, acadYear string, module model.Module) error {
	if module.ModuleCode == "" || strings.ContainsAny(module.ModuleCode, `/\`) {
		return fmt.Errorf("模块代码无效: %q", module.ModuleCode)
	}
	return s.put(ctx, modulePath(acadYear, module.ModuleCode), module)
}

func (s *documentStore) WriteModuleList(ctx context.Context, acadYear string, list []model.ModuleCondensed) error {
	return s.put(ctx, path.Join(yearDir(acadYear), "moduleList.json"), list)
}

func (s *documentStore) WriteModuleInformation(ctx context.Context, acadYear string, info []model.ModuleInformation) error {
	return s.put(ctx, path.Join(yearDir(acadYear), "moduleInfo.json"), info)
}

func (s *documentStore) WriteVenueInfo(ctx context.Context, acadYear string, semester int, info model.VenueInfo) error {
	return s.put(ctx, path.Join(semesterDir(acadYear, semester), "venueInformation.json"), info)
}

func (s *documentStore) WriteVenueList(ctx context.Context, acadYear string, semester int, venues []string) error {
	return s.put(ctx, path.Join(semesterDir(acadYear, semester), "venues.json"), venues)
}

func (s *documentStore) WriteAliases(ctx context.Context, acadYear string, aliases map[string][]string) error {
	return s.put(ctx, path.Join(yearDir(acadYear), "aliases.json"), aliases)
}

func (s *documentStore) DeleteModule(ctx context.Context, acadYear, code string) error {
	if err := s.backend.Delete(ctx, modulePath(acadYear, code)); err != nil {
		return fmt.Errorf("删除模块 %s 失败: %w", code, err)
	}
	return nil
}

func (s *documentStore) ListKnownModuleCodes(ctx context.Context, acadYear string) ([]string, error) {
	prefix := path.Join(yearDir(acadYear), "modules") + "/"
	keys, err := s.backend.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("列出已有模块失败: %w", err)
	}
	codes := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, prefix)
		if strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
			continue
		}
		codes = append(codes, strings.TrimSuffix(name, ".json"))
	}
	return codes, nil
}

func (s *documentStore) put(ctx context.Context, key string, v interface{}) error {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return fmt.Errorf("编码 %s 失败: %w", key, err)
	}
	if err := s.backend.Put(ctx, key, data); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", key, err)
	}
	return nil
}

// ── 路径 ──

// yearDir "2025/2026" → "2025-2026"
func yearDir(acadYear string) string {
	return strings.ReplaceAll(acadYear, "/", "-")
}

func semesterDir(acadYear string, semester int) string {
	return path.Join(yearDir(acadYear), "semesters", fmt.Sprint(semester))
}

func modulePath(acadYear, code string) string {
	return path.Join(yearDir(acadYear), "modules", code+".json")
}
