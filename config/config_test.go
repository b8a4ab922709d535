package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadFromDir(t, "")
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Retry.Attempts != 3 {
		t.Errorf("期望 retry.attempts=3，实际=%d", cfg.Retry.Attempts)
	}
	if cfg.Cache.OrgTTL != 7*24*time.Hour {
		t.Errorf("期望 org_ttl=168h，实际=%s", cfg.Cache.OrgTTL)
	}
	if cfg.Cache.ExamTTL != 5*24*time.Hour {
		t.Errorf("期望 exam_ttl=120h，实际=%s", cfg.Cache.ExamTTL)
	}
	if len(cfg.App.Semesters) != 4 {
		t.Errorf("期望默认 4 个学期，实际=%v", cfg.App.Semesters)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	yaml := `app:
  academic_year: "2024/2025"
  semesters: [1, 2]
storage:
  driver: minio
calendar:
  overrides:
    "2024/2025-1": "2024-08-12"
`
	cfg, err := loadFromDir(t, yaml)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.App.AcademicYear != "2024/2025" {
		t.Errorf("期望 academic_year=2024/2025，实际=%s", cfg.App.AcademicYear)
	}
	if cfg.Storage.Driver != "minio" {
		t.Errorf("期望 storage.driver=minio，实际=%s", cfg.Storage.Driver)
	}
	if got := cfg.Calendar.Overrides["2024/2025-1"]; got != "2024-08-12" {
		t.Errorf("期望 calendar override=2024-08-12，实际=%q", got)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			App:     AppConfig{AcademicYear: "2025/2026", Semesters: []int{1, 2}},
			API:     APIConfig{BaseURL: "http://x"},
			Cache:   CacheConfig{Driver: "memory"},
			Storage: StorageConfig{Driver: "fs"},
			Retry:   RetryConfig{Attempts: 3},
			Server:  ServerConfig{Port: 8080},
		}
	}

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad year", func(c *Config) { c.App.AcademicYear = "2025-2026" }},
		{"non-adjacent year", func(c *Config) { c.App.AcademicYear = "2025/2027" }},
		{"no semesters", func(c *Config) { c.App.Semesters = nil }},
		{"semester out of range", func(c *Config) { c.App.Semesters = []int{5} }},
		{"no base url", func(c *Config) { c.API.BaseURL = "" }},
		{"bad cache driver", func(c *Config) { c.Cache.Driver = "memcached" }},
		{"bad storage driver", func(c *Config) { c.Storage.Driver = "s3" }},
		{"zero attempts", func(c *Config) { c.Retry.Attempts = 0 }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
	}

	ok := base()
	if err := ok.Validate(); err != nil {
		t.Fatalf("基础配置应通过校验: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("期望校验失败")
			}
		})
	}
}

// loadFromDir 在临时目录中写入 config.yaml（为空则不写）并按默认搜索路径加载
func loadFromDir(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	dir := t.TempDir()
	if yaml != "" {
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
			t.Fatalf("写入配置文件失败: %v", err)
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("获取工作目录失败: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("切换目录失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return Load("")
}
