package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/cinesearch/internal/detail"
	"github.com/John-Robertt/cinesearch/internal/domain"
	"github.com/John-Robertt/cinesearch/internal/infra/fsx"
	"github.com/John-Robertt/cinesearch/internal/logging"
	"github.com/John-Robertt/cinesearch/internal/nfo"
)

type detailFlags struct {
	json    bool
	nfoPath string
	force   bool
}

func newDetailCmd(a *app) *cobra.Command {
	var f detailFlags
	cmd := &cobra.Command{
		Use:   "detail <imdb-id>",
		Short: "Show the full record for one title",
		Example: `  cinesearch detail tt0372784
  cinesearch detail tt0372784 --nfo "Batman Begins (2005)/movie.nfo"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDetail(cmd, args[0], f)
		},
	}
	cmd.Flags().BoolVar(&f.json, "json", false, "print JSON even on a terminal")
	cmd.Flags().StringVar(&f.nfoPath, "nfo", "", "write a Kodi .nfo file for the title")
	cmd.Flags().BoolVar(&f.force, "force", false, "overwrite --nfo if it exists")
	return cmd
}

func (a *app) runDetail(cmd *cobra.Command, raw string, f detailFlags) error {
	id, ok := domain.ParseIMDbID(raw)
	if !ok {
		return &exitError{code: 2, msg: fmt.Sprintf("参数错误：%q 不是合法的 IMDb ID（形如 tt0372784）", raw)}
	}

	fetcher := detail.New(a.loader,
		detail.WithCache(a.cache),
		detail.WithOnLoaded(a.cache.Put),
		detail.WithLogger(logging.Component(a.log, "detail")),
		detail.WithMetrics(a.metrics),
	)
	defer fetcher.Close()

	fetcher.Fetch(id)
	fetcher.Wait()
	st := fetcher.State()

	exp := domain.NewDetailExport(id, st.Record, st.Error, a.env.now())

	if f.nfoPath != "" && exp.Record != nil {
		b, err := nfo.Encode(*exp.Record)
		if err != nil {
			return &exitError{code: 1, msg: "生成 NFO 失败：" + err.Error()}
		}
		mode := fsx.NoOverwrite
		if f.force {
			mode = fsx.Replace
		}
		if err := fsx.WriteFile(f.nfoPath, b, mode); err != nil {
			return &exitError{code: 1, msg: fmt.Sprintf("写入 %s 失败：%v", f.nfoPath, err)}
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "nfo: %s\n", f.nfoPath)
	}

	w, tty := a.out(cmd)
	if tty && !f.json {
		printDetail(w, exp)
	} else if err := writeJSON(w, exp); err != nil {
		return err
	}

	if exp.Record == nil {
		if !tty || f.json {
			fmt.Fprintf(cmd.ErrOrStderr(), "失败：%s %s\n", id, exp.Error)
		}
		return &exitError{code: 1}
	}
	return nil
}
