package routes

import (
	"sort"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/tryweb/plugin-repo/internal/server"
	"github.com/tryweb/plugin-repo/internal/version"
)

// RegisterRepoRoutes 暴露 /-/repos 诊断接口，供运维查询仓库注册状态。
func RegisterRepoRoutes(app *fiber.App, registry *server.RepoRegistry, cacheBackend string) {
	if app == nil || registry == nil {
		return
	}

	app.Get("/-/repos", func(c fiber.Ctx) error {
		payload := fiber.Map{
			"version":       version.Full(),
			"cache_backend": cacheBackend,
			"repos":         encodeRepos(registry.List()),
		}
		return c.JSON(payload)
	})

	app.Get("/-/repos/:name", func(c fiber.Ctx) error {
		name := c.Params("name")
		route, ok := registry.Lookup(name)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repo_not_found"})
		}
		return c.JSON(encodeRepo(*route))
	})
}

type repoPayload struct {
	Name           string `json:"name"`
	BaseURL        string `json:"base_url"`
	Title          string `json:"title"`
	RefreshSeconds int64  `json:"refresh_seconds"`
	Port           int    `json:"port"`
}

func encodeRepos(routes []server.RepoRoute) []repoPayload {
	if len(routes) == 0 {
		return nil
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Config.Name < routes[j].Config.Name
	})
	result := make([]repoPayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, encodeRepo(route))
	}
	return result
}

func encodeRepo(route server.RepoRoute) repoPayload {
	return repoPayload{
		Name:           route.Config.Name,
		BaseURL:        route.Spec.BaseURL,
		Title:          route.Spec.Title,
		RefreshSeconds: int64(route.Spec.Refresh / time.Second),
		Port:           route.ListenPort,
	}
}
