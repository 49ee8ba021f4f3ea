package server

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tryweb/plugin-repo/internal/logging"
	"github.com/tryweb/plugin-repo/internal/metrics"
	"github.com/tryweb/plugin-repo/internal/mirror"
	"github.com/tryweb/plugin-repo/internal/render"
	"github.com/tryweb/plugin-repo/internal/repospec"
)

// MirrorService describes the engine behind the page routes. It allows
// injecting fake services during tests.
type MirrorService interface {
	Listing(ctx context.Context, req mirror.ListingRequest) (mirror.ListingResult, error)
	File(ctx context.Context, req mirror.FileRequest) (mirror.FileResult, error)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Registry   *RepoRegistry
	Mirror     MirrorService
	Renderer   render.PageRenderer
	ListenPort int
}

const contextKeyRequestID = "_pluginrepo_request_id"

// NewApp builds a Fiber application with request-ID middleware, the page
// route, and the diagnostic surfaces under /-/.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("repo registry is required")
	}
	if opts.Mirror == nil {
		return nil, errors.New("mirror service is required")
	}
	if opts.Renderer == nil {
		opts.Renderer = render.NewHTML()
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/repo/:name", repoPageHandler(opts))
	app.Get("/-/metrics", adaptor.HTTPHandler(metrics.Handler()))

	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID 并回写响应头，便于日志串联。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// repoPageHandler 是唯一的页面路由：目录路径走列表管线，其余走高亮管线。
func repoPageHandler(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		route, ok := opts.Registry.Lookup(c.Params("name"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repo_not_found"})
		}

		relPath, ok := sanitizePath(c.Query("path"))
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_path"})
		}
		purge := parseBool(c.Query("purge"))

		if repospec.IsDirectory(relPath) {
			return serveListing(c, opts, route, relPath, purge)
		}
		return serveFile(c, opts, route, relPath, purge)
	}
}

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

func serveListing(c fiber.Ctx, opts AppOptions, route *RepoRoute, relPath string, purge bool) error {
	result, err := opts.Mirror.Listing(requestContext(c), mirror.ListingRequest{
		Repo:  route.Spec,
		Path:  relPath,
		Purge: purge,
	})
	if err != nil {
		logRequest(opts.Logger, route, relPath, "listing", purge, false, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "listing_failed"})
	}

	logRequest(opts.Logger, route, relPath, "listing", purge, result.FromCache, nil)
	page := opts.Renderer.Page(render.PageView{
		RepoName: route.Config.Name,
		Title:    route.Spec.Title,
		Crumbs:   repospec.Breadcrumbs(relPath),
		Tree:     result.Nodes,
	})
	return c.Type("html").SendString(page)
}

func serveFile(c fiber.Ctx, opts AppOptions, route *RepoRoute, relPath string, purge bool) error {
	result, err := opts.Mirror.File(requestContext(c), mirror.FileRequest{
		Repo:  route.Spec,
		Path:  relPath,
		Purge: purge,
	})
	if err != nil {
		logRequest(opts.Logger, route, relPath, "file", purge, false, err)

		var re *mirror.RenderError
		if errors.As(err, &re) {
			// 单文件失败以行内错误片段呈现，页面本身仍然成功
			page := opts.Renderer.Page(render.PageView{
				RepoName:     route.Config.Name,
				Title:        route.Spec.Title,
				Crumbs:       repospec.Breadcrumbs(relPath),
				ErrorMessage: inlineErrorMessage(re),
			})
			return c.Type("html").SendString(page)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "render_failed"})
	}

	logRequest(opts.Logger, route, relPath, "file", purge, result.FromCache, nil)
	page := opts.Renderer.Page(render.PageView{
		RepoName: route.Config.Name,
		Title:    route.Spec.Title,
		Crumbs:   repospec.Breadcrumbs(relPath),
		CodeHTML: result.HTML,
		RawURL:   result.URL,
	})
	return c.Type("html").SendString(page)
}

func inlineErrorMessage(re *mirror.RenderError) string {
	if re.Kind == mirror.RenderHighlighterFailure {
		return "could not highlight " + re.URL
	}
	return "could not fetch " + re.URL
}

func logRequest(logger *logrus.Logger, route *RepoRoute, relPath, kind string, purge, cacheHit bool, err error) {
	if logger == nil {
		return
	}
	fields := logging.RequestFields(route.Config.Name, relPath, kind, purge, cacheHit)
	fields["action"] = "repo_page"
	if err != nil {
		logger.WithFields(fields).Warn(err.Error())
		return
	}
	logger.WithFields(fields).Info("page served")
}

// sanitizePath 拒绝越界路径：绝对路径、反斜杠与任何 .. 段都不放行。
func sanitizePath(raw string) (string, bool) {
	if raw == "" {
		return "", true
	}
	if strings.HasPrefix(raw, "/") || strings.Contains(raw, "\\") {
		return "", false
	}
	for _, segment := range strings.Split(raw, "/") {
		if segment == ".." || segment == "." {
			return "", false
		}
	}
	// path.Clean 之后仍需与原文一致（尾斜杠除外），防止编码绕过
	cleaned := path.Clean(raw)
	if cleaned != strings.TrimSuffix(raw, "/") {
		return "", false
	}
	return raw, true
}

func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
