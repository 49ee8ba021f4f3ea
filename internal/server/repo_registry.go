package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tryweb/plugin-repo/internal/config"
	"github.com/tryweb/plugin-repo/internal/repospec"
)

// RepoRoute 将仓库配置与解析后的规格聚合在一起，供路由层直接复用，
// 避免每个请求重复解析指令与刷新令牌。
type RepoRoute struct {
	// Config 是用户在 config.toml 中声明的 Repo 字段副本，避免外部修改。
	Config config.RepoConfig
	// Spec 是构造 Registry 时解析完成的不可变规格。
	Spec repospec.Spec
	// ListenPort 记录当前 CLI 监听端口，方便日志输出。
	ListenPort int
}

// RepoRegistry 提供仓库名到 RepoRoute 的查询能力。
type RepoRegistry struct {
	routes  map[string]*RepoRoute
	ordered []*RepoRoute
}

// NewRepoRegistry 根据配置构建仓库映射。调用方应在启动阶段创建一次并复用。
func NewRepoRegistry(cfg *config.Config) (*RepoRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	registry := &RepoRegistry{
		routes: make(map[string]*RepoRoute, len(cfg.Repos)),
	}

	for _, repo := range cfg.Repos {
		name := strings.TrimSpace(repo.Name)
		if name == "" {
			return nil, errors.New("repo name required")
		}
		if _, exists := registry.routes[name]; exists {
			return nil, fmt.Errorf("duplicate repo name detected for %s", name)
		}

		spec := repo.Spec(cfg.Global.DefaultRefresh.DurationValue())
		if spec.BaseURL == "" {
			return nil, fmt.Errorf("repo %s has no base url", name)
		}

		route := &RepoRoute{
			Config:     repo,
			Spec:       spec,
			ListenPort: cfg.Global.ListenPort,
		}
		registry.routes[name] = route
		registry.ordered = append(registry.ordered, route)
	}

	return registry, nil
}

// Lookup 根据仓库名查找 RepoRoute。
func (r *RepoRegistry) Lookup(name string) (*RepoRoute, bool) {
	if r == nil {
		return nil, false
	}
	route, ok := r.routes[strings.TrimSpace(name)]
	return route, ok
}

// List 返回当前注册的 RepoRoute 列表（按配置定义的顺序），用于诊断输出。
func (r *RepoRegistry) List() []RepoRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}

	result := make([]RepoRoute, len(r.ordered))
	for i, route := range r.ordered {
		result[i] = *route
	}
	return result
}
