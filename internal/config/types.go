package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tryweb/plugin-repo/internal/repospec"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// 缓存后端取值。
const (
	BackendFS     = "fs"
	BackendBadger = "badger"
)

// GlobalConfig 描述全局运行时行为，所有仓库共享同一份参数。
type GlobalConfig struct {
	ListenPort     int      `mapstructure:"ListenPort"`
	LogLevel       string   `mapstructure:"LogLevel"`
	LogFilePath    string   `mapstructure:"LogFilePath"`
	LogMaxSize     int      `mapstructure:"LogMaxSize"`
	LogMaxBackups  int      `mapstructure:"LogMaxBackups"`
	LogCompress    bool     `mapstructure:"LogCompress"`
	StoragePath    string   `mapstructure:"StoragePath"`
	CacheBackend   string   `mapstructure:"CacheBackend"`
	DefaultRefresh Duration `mapstructure:"DefaultRefresh"`
	FetchTimeout   Duration `mapstructure:"FetchTimeout"`
	MaxCrawlDepth  int      `mapstructure:"MaxCrawlDepth"`
	HighlightStyle string   `mapstructure:"HighlightStyle"`
}

// RepoConfig 声明一个被镜像的远端仓库。BaseURL 与 Directive 二选一：
// Directive 直接写嵌入指令正文，Name 之外的字段由指令解析得出。
type RepoConfig struct {
	Name      string `mapstructure:"Name"`
	BaseURL   string `mapstructure:"BaseURL"`
	Directive string `mapstructure:"Directive"`
	Refresh   string `mapstructure:"Refresh"`
	Title     string `mapstructure:"Title"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Repos  []RepoConfig `mapstructure:"Repo"`
}

// Spec 将仓库配置解析为请求期使用的不可变规格。
// 离散字段与指令两种写法在此收敛；显式 Title 永远优先。
// defaultRefresh 是缺失/非法刷新令牌的回退值，非正时使用包级默认值。
func (r RepoConfig) Spec(defaultRefresh time.Duration) repospec.Spec {
	var spec repospec.Spec
	if strings.TrimSpace(r.Directive) != "" {
		spec = repospec.ParseDirectiveWithDefault(r.Directive, defaultRefresh)
	} else {
		spec = repospec.Spec{
			BaseURL: r.BaseURL,
			Refresh: repospec.ParseRefreshWithDefault(r.Refresh, defaultRefresh),
		}
	}

	if r.Title != "" {
		spec.Title = r.Title
	}
	if spec.Title == "" {
		spec.Title = r.Name
	}
	if spec.BaseURL != "" && !strings.HasSuffix(spec.BaseURL, "/") {
		spec.BaseURL += "/"
	}
	return spec
}
