package config

import (
	"testing"
	"time"

	"github.com/tryweb/plugin-repo/internal/repospec"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.FetchTimeout.DurationValue() != 25*time.Second {
		t.Fatalf("FetchTimeout 解析错误: %v", cfg.Global.FetchTimeout.DurationValue())
	}
	if cfg.Global.CacheBackend != BackendFS {
		t.Fatalf("CacheBackend 应为 fs: %s", cfg.Global.CacheBackend)
	}
	if cfg.Global.DefaultRefresh.DurationValue() != repospec.DefaultRefresh {
		t.Fatalf("DefaultRefresh 应有默认值: %v", cfg.Global.DefaultRefresh.DurationValue())
	}
	if cfg.Global.MaxCrawlDepth == 0 {
		t.Fatalf("MaxCrawlDepth 应该自动填充默认值")
	}
	if cfg.Global.HighlightStyle != "github" {
		t.Fatalf("HighlightStyle 应有默认值: %s", cfg.Global.HighlightStyle)
	}
	if len(cfg.Repos) != 2 {
		t.Fatalf("期望 2 个 Repo，得到 %d", len(cfg.Repos))
	}
}

func TestRepoSpecFromDiscreteFields(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}

	spec := cfg.Repos[0].Spec(0)
	if spec.BaseURL != "http://example.com/src/" {
		t.Fatalf("BaseURL 解析错误: %s", spec.BaseURL)
	}
	if spec.Refresh != 2*86400*time.Second {
		t.Fatalf("Refresh 令牌解析错误: %v", spec.Refresh)
	}
	if spec.Title != "Demo Source" {
		t.Fatalf("Title 解析错误: %s", spec.Title)
	}
}

func TestRepoSpecFromDirective(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}

	spec := cfg.Repos[1].Spec(0)
	if spec.BaseURL != "http://example.org/svn/" {
		t.Fatalf("指令 BaseURL 解析错误: %s", spec.BaseURL)
	}
	if spec.Refresh != 3*time.Hour {
		t.Fatalf("指令 Refresh 解析错误: %v", spec.Refresh)
	}
	if spec.Title != "Nice Title" {
		t.Fatalf("指令覆盖标题应生效: %s", spec.Title)
	}
}

func TestRepoSpecInvalidRefreshSilentlyDefaults(t *testing.T) {
	repo := RepoConfig{Name: "x", BaseURL: "http://example.com/src/", Refresh: "soon"}
	if spec := repo.Spec(0); spec.Refresh != repospec.DefaultRefresh {
		t.Fatalf("非法刷新令牌应静默回退默认值: %v", spec.Refresh)
	}
}

func TestRepoSpecUsesGlobalDefaultRefresh(t *testing.T) {
	fallback := 30 * time.Minute

	repo := RepoConfig{Name: "x", BaseURL: "http://example.com/src/"}
	if spec := repo.Spec(fallback); spec.Refresh != fallback {
		t.Fatalf("缺失令牌应使用全局默认值: %v", spec.Refresh)
	}

	directive := RepoConfig{Name: "y", Directive: "{{repo>http://example.com/src/}}"}
	if spec := directive.Spec(fallback); spec.Refresh != fallback {
		t.Fatalf("无令牌指令应使用全局默认值: %v", spec.Refresh)
	}

	// 显式令牌不受全局默认影响
	explicit := RepoConfig{Name: "z", BaseURL: "http://example.com/src/", Refresh: "2d"}
	if spec := explicit.Spec(fallback); spec.Refresh != 2*86400*time.Second {
		t.Fatalf("显式令牌应优先于全局默认值: %v", spec.Refresh)
	}
}

func TestRepoSpecNormalizesTrailingSlash(t *testing.T) {
	repo := RepoConfig{Name: "x", BaseURL: "http://example.com/src"}
	if spec := repo.Spec(0); spec.BaseURL != "http://example.com/src/" {
		t.Fatalf("BaseURL 应补齐尾斜杠: %s", spec.BaseURL)
	}
}

func TestRepoSpecFallsBackToNameAsTitle(t *testing.T) {
	repo := RepoConfig{Name: "fallback", BaseURL: "http://example.com/src/"}
	if spec := repo.Spec(0); spec.Title != "fallback" {
		t.Fatalf("无标题时应回退仓库名: %s", spec.Title)
	}
}

func TestValidateRejectsMissingRepoSource(t *testing.T) {
	if _, err := Load(testConfigPath(t, "missing.toml")); err == nil {
		t.Fatalf("缺失 BaseURL/Directive 的配置应返回错误")
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Global.CacheBackend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("未知缓存后端应当报错")
	}
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	cfg := validConfig()
	cfg.Repos = append(cfg.Repos, cfg.Repos[0])
	if err := cfg.Validate(); err == nil {
		t.Fatalf("重复仓库名应当报错")
	}
}

func TestValidateRejectsBothSourceForms(t *testing.T) {
	cfg := validConfig()
	cfg.Repos[0].Directive = "http://example.com/other/"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("BaseURL 与 Directive 同时填写应当报错")
	}
}

func TestValidateRejectsNonHTTPBase(t *testing.T) {
	cfg := validConfig()
	cfg.Repos[0].BaseURL = "ftp://example.com/src/"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("非 http/https 地址应当报错")
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:    5000,
			StoragePath:   "./data",
			CacheBackend:  BackendFS,
			FetchTimeout:  Duration(25 * time.Second),
			MaxCrawlDepth: 64,
		},
		Repos: []RepoConfig{
			{Name: "demo", BaseURL: "http://example.com/src/"},
		},
	}
}
