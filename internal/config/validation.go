package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
// 刷新令牌不在校验范围内：非法令牌按约定静默回退到默认值。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.CacheBackend != BackendFS && g.CacheBackend != BackendBadger {
		return newFieldError("Global.CacheBackend", "仅支持 fs|badger")
	}
	if g.FetchTimeout.DurationValue() <= 0 {
		return newFieldError("Global.FetchTimeout", "必须大于 0")
	}
	if g.MaxCrawlDepth <= 0 {
		return newFieldError("Global.MaxCrawlDepth", "必须大于 0")
	}

	if len(c.Repos) == 0 {
		return errors.New("至少需要配置一个 Repo")
	}

	seenNames := map[string]struct{}{}
	for i := range c.Repos {
		repo := &c.Repos[i]
		if repo.Name == "" {
			return newFieldError("Repo[].Name", "不能为空")
		}
		if strings.ContainsAny(repo.Name, "/ ") {
			return newFieldError(repoField(repo.Name, "Name"), "不允许包含斜杠或空格")
		}
		if _, exists := seenNames[repo.Name]; exists {
			return newFieldError(repoField(repo.Name, "Name"), "重复")
		}
		seenNames[repo.Name] = struct{}{}

		if repo.BaseURL == "" && strings.TrimSpace(repo.Directive) == "" {
			return newFieldError(repoField(repo.Name, "BaseURL"), "BaseURL 与 Directive 至少填写一个")
		}
		if repo.BaseURL != "" && strings.TrimSpace(repo.Directive) != "" {
			return newFieldError(repoField(repo.Name, "BaseURL"), "BaseURL 与 Directive 不可同时填写")
		}

		spec := repo.Spec(g.DefaultRefresh.DurationValue())
		if err := validateBaseURL(spec.BaseURL); err != nil {
			return fmt.Errorf("%s: %w", repoField(repo.Name, "BaseURL"), err)
		}
	}

	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("缺少仓库地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，地址: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("地址缺少 Host: %s", raw)
	}
	return nil
}
