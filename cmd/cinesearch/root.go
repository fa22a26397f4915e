package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/John-Robertt/cinesearch/internal/config"
	"github.com/John-Robertt/cinesearch/internal/detail"
	"github.com/John-Robertt/cinesearch/internal/infra/cache"
	"github.com/John-Robertt/cinesearch/internal/infra/httpx"
	"github.com/John-Robertt/cinesearch/internal/logging"
	"github.com/John-Robertt/cinesearch/internal/metrics"
	"github.com/John-Robertt/cinesearch/internal/omdb"
)

// env 汇总进程外部输入，测试时整体替换。
type env struct {
	lookupEnv config.LookupEnv
	getwd     func() (string, error)
	now       func() time.Time
	isTTY     func(w any) bool
}

func defaultEnv() env {
	return env{
		lookupEnv: os.LookupEnv,
		getwd:     os.Getwd,
		now:       time.Now,
		isTTY:     isTerminal,
	}
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// app 是一次命令执行所需的全部依赖（由 PersistentPreRunE 构造）。
type app struct {
	env env
	eff config.EffectiveConfig

	log    zerolog.Logger
	logRes *logging.Result

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	client *omdb.Client
	cache  *cache.Store
	loader *detail.Loader
}

type rootFlags struct {
	configPath string
	apiKey     string
	baseURL    string
	debounce   time.Duration
	logLevel   string
}

func newRootCmd(e env) *cobra.Command {
	var (
		flags rootFlags
		a     = &app{env: e}
	)

	cmd := &cobra.Command{
		Use:           "cinesearch",
		Short:         "Search OMDb from the terminal",
		Long:          "cinesearch: search-as-you-type over the OMDb API, with paged results and cached details.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.logRes.Close()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default: ./cinesearch.json|yaml|yml)")
	pf.StringVar(&flags.apiKey, "api-key", "", "OMDb API key (overrides $"+config.EnvAPIKey+")")
	pf.StringVar(&flags.baseURL, "base-url", "", "OMDb base URL (overrides $"+config.EnvBaseURL+")")
	pf.DurationVar(&flags.debounce, "debounce", 0, "search debounce window, e.g. 300ms")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug|info|warn|error")

	cmd.AddCommand(newSearchCmd(a), newDetailCmd(a), newBrowseCmd(a))
	return cmd
}

func (a *app) setup(cmd *cobra.Command, flags rootFlags) error {
	cwd, err := a.env.getwd()
	if err != nil {
		return &exitError{code: 1, msg: "读取当前目录失败：" + err.Error()}
	}

	pf := cmd.Flags()
	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath:  flags.configPath,
		APIKey:      flags.apiKey,
		APIKeySet:   pf.Changed("api-key"),
		BaseURL:     flags.baseURL,
		BaseURLSet:  pf.Changed("base-url"),
		Debounce:    flags.debounce,
		DebounceSet: pf.Changed("debounce"),
		LogLevel:    flags.logLevel,
		LogLevelSet: pf.Changed("log-level"),
	}, a.env.lookupEnv)
	if err != nil {
		return &exitError{code: 1, msg: err.Error()}
	}
	a.eff = eff

	if err := a.setupLogging(cmd); err != nil {
		return &exitError{code: 1, msg: err.Error()}
	}

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)

	hc, err := httpx.NewAPIClient(httpx.Options{
		ProxyURL:      eff.ProxyURL,
		Timeout:       eff.Timeout,
		RetryMax:      &eff.RetryMax,
		RatePerSecond: eff.RatePerSecond,
		Burst:         eff.Burst,
	})
	if err != nil {
		return &exitError{code: 1, msg: "初始化 HTTP 客户端失败：" + err.Error()}
	}

	clientLog := logging.Component(a.log, "omdb")
	a.client = omdb.NewClient(eff.BaseURL, eff.APIKey, hc, &clientLog, a.metrics)
	a.cache = cache.New()
	loaderLog := logging.Component(a.log, "detail")
	a.loader = detail.NewLoader(a.client, &loaderLog)

	if eff.APIKey == "" {
		a.log.Warn().Msg("未配置 API key（--api-key / $" + config.EnvAPIKey + " / api_key），请求可能被拒绝")
	}
	a.log.Debug().
		Str("config", eff.ConfigPath).
		Str("base_url", eff.BaseURL).
		Str("proxy", formatProxy(eff.ProxyURL)).
		Dur("debounce", eff.Debounce).
		Msg("配置已加载")
	return nil
}

// setupLogging：browse 占用终端，日志只能写文件（未配置 log_file 时丢弃）；
// 其它命令写 stderr，stderr 不是终端时输出 JSON 行。
func (a *app) setupLogging(cmd *cobra.Command) error {
	opts := logging.Options{Level: a.eff.LogLevel, Out: cmd.ErrOrStderr()}
	if !a.env.isTTY(cmd.ErrOrStderr()) {
		opts.Format = logging.FormatJSON
	}

	if cmd.Name() == "browse" {
		if strings.TrimSpace(a.eff.LogFile) == "" {
			a.log = zerolog.Nop()
			return nil
		}
		opts.File = a.eff.LogFile
	}

	res, err := logging.New(opts)
	if err != nil {
		return err
	}
	a.logRes = res
	a.log = res.Logger
	return nil
}

// out 返回命令的 stdout 以及它是否是终端。
func (a *app) out(cmd *cobra.Command) (io.Writer, bool) {
	w := cmd.OutOrStdout()
	return w, a.env.isTTY(w)
}
