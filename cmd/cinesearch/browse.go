package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/cinesearch/internal/detail"
	"github.com/John-Robertt/cinesearch/internal/logging"
	"github.com/John-Robertt/cinesearch/internal/search"
	"github.com/John-Robertt/cinesearch/internal/tui"
)

func newBrowseCmd(a *app) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Interactive search-as-you-type browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := a.eff.MetricsAddr
			if cmd.Flags().Changed("metrics-addr") {
				addr = metricsAddr
			}
			return a.runBrowse(cmd, strings.TrimSpace(addr))
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9090")
	return cmd
}

func (a *app) runBrowse(cmd *cobra.Command, metricsAddr string) error {
	if !a.env.isTTY(cmd.OutOrStdout()) || !a.env.isTTY(cmd.InOrStdin()) {
		return &exitError{code: 2, msg: "browse 需要交互终端；非交互场景请使用 search / detail"}
	}

	if metricsAddr != "" {
		_, stop, err := serveMetrics(metricsAddr, a.registry, a.log)
		if err != nil {
			return &exitError{code: 1, msg: "启动 metrics 服务失败：" + err.Error()}
		}
		defer stop()
	}

	n := tui.NewNotifier()
	o := search.New(a.client,
		search.WithDebounce(a.eff.Debounce),
		search.WithLogger(logging.Component(a.log, "search")),
		search.WithMetrics(a.metrics),
		search.WithListener(func(search.State) { n.Notify() }),
	)
	defer o.Close()

	detailLog := logging.Component(a.log, "detail")
	newDetail := func() tui.DetailSource {
		return detail.New(a.loader,
			detail.WithCache(a.cache),
			detail.WithOnLoaded(a.cache.Put),
			detail.WithLogger(detailLog),
			detail.WithMetrics(a.metrics),
			detail.WithListener(func(detail.State) { n.Notify() }),
		)
	}

	m := tui.New(tui.Config{Search: o, NewDetail: newDetail, Notifier: n})
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	final, err := p.Run()
	if fm, ok := final.(tui.Model); ok {
		fm.Close()
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return &exitError{code: 1, msg: "界面异常退出：" + err.Error()}
	}
	return nil
}

// serveMetrics 在后台提供 /metrics，返回实际监听地址；stop 会优雅关闭服务。
func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics 服务异常退出")
		}
	}()
	bound := ln.Addr().String()
	log.Info().Str("addr", bound).Msg("metrics 服务已启动")

	return bound, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
