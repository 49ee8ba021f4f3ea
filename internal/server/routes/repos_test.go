package routes

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/tryweb/plugin-repo/internal/config"
	"github.com/tryweb/plugin-repo/internal/server"
)

func diagnosticApp(t *testing.T) *fiber.App {
	t.Helper()

	registry, err := server.NewRepoRegistry(&config.Config{
		Global: config.GlobalConfig{ListenPort: 5100},
		Repos: []config.RepoConfig{
			{Name: "zeta", BaseURL: "http://example.com/zeta", Refresh: "1h"},
			{Name: "alpha", BaseURL: "http://example.com/alpha", Title: "Alpha"},
		},
	})
	if err != nil {
		t.Fatalf("registry error: %v", err)
	}

	app := fiber.New()
	RegisterRepoRoutes(app, registry, config.BackendFS)
	return app
}

func TestRepoInventoryEndpoint(t *testing.T) {
	app := diagnosticApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/repos", nil))
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("诊断接口应返回 200, got %d", resp.StatusCode)
	}

	var payload struct {
		Version      string `json:"version"`
		CacheBackend string `json:"cache_backend"`
		Repos        []struct {
			Name           string `json:"name"`
			BaseURL        string `json:"base_url"`
			Title          string `json:"title"`
			RefreshSeconds int64  `json:"refresh_seconds"`
		} `json:"repos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if payload.CacheBackend != config.BackendFS {
		t.Fatalf("cache_backend 应透传: %s", payload.CacheBackend)
	}
	if payload.Version == "" {
		t.Fatal("version 不应为空")
	}
	if len(payload.Repos) != 2 {
		t.Fatalf("应列出两个仓库: %+v", payload.Repos)
	}
	// 输出按仓库名排序
	if payload.Repos[0].Name != "alpha" || payload.Repos[1].Name != "zeta" {
		t.Fatalf("仓库应按名称排序: %+v", payload.Repos)
	}
	if payload.Repos[0].Title != "Alpha" {
		t.Fatalf("显式标题应保留: %s", payload.Repos[0].Title)
	}
	if payload.Repos[1].RefreshSeconds != 3600 {
		t.Fatalf("refresh_seconds 解析错误: %d", payload.Repos[1].RefreshSeconds)
	}
}

func TestRepoInventorySingle(t *testing.T) {
	app := diagnosticApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/repos/alpha", nil))
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("已注册仓库应返回 200, got %d", resp.StatusCode)
	}

	missing, err := app.Test(httptest.NewRequest("GET", "/-/repos/nope", nil))
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != 404 {
		t.Fatalf("未注册仓库应返回 404, got %d", missing.StatusCode)
	}
}
