package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tryweb/plugin-repo/internal/cache"
	"github.com/tryweb/plugin-repo/internal/config"
	"github.com/tryweb/plugin-repo/internal/crawler"
	"github.com/tryweb/plugin-repo/internal/fetch"
	"github.com/tryweb/plugin-repo/internal/highlight"
	"github.com/tryweb/plugin-repo/internal/logging"
	"github.com/tryweb/plugin-repo/internal/mirror"
	"github.com/tryweb/plugin-repo/internal/server"
	"github.com/tryweb/plugin-repo/internal/server/routes"
	"github.com/tryweb/plugin-repo/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["repos"] = len(cfg.Repos)
		fields["cache_backend"] = cfg.Global.CacheBackend
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	registry, err := server.NewRepoRegistry(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "构建仓库注册表失败: %v\n", err)
		return 1
	}

	// CLI 启动遵循“配置 → 注册表 → 缓存 → 镜像服务 → Fiber server”顺序，
	// 所有请求共享同一缓存实例与抓取客户端。
	store, err := newStore(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存失败: %v\n", err)
		return 1
	}
	defer store.Close()

	fetcher := fetch.New(cfg.Global.FetchTimeout.DurationValue())
	treeCrawler := crawler.New(fetcher, logger, cfg.Global.MaxCrawlDepth)
	highlighter := highlight.NewChroma(cfg.Global.HighlightStyle)
	mirrorService := mirror.New(store, fetcher, treeCrawler, highlighter, logger)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["repos"] = len(cfg.Repos)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["cache_backend"] = cfg.Global.CacheBackend
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, registry, mirrorService, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// newStore 根据 CacheBackend 选择磁盘目录或 Badger 作为缓存后端。
func newStore(g config.GlobalConfig) (cache.Store, error) {
	switch g.CacheBackend {
	case config.BackendBadger:
		return cache.NewBadgerStore(g.StoragePath)
	default:
		return cache.NewFSStore(g.StoragePath)
	}
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("plugin-repo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 PLUGIN_REPO_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("PLUGIN_REPO_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, registry *server.RepoRegistry, mirrorService server.MirrorService, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Registry:   registry,
		Mirror:     mirrorService,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterRepoRoutes(app, registry, cfg.Global.CacheBackend)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
