package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/cinesearch/internal/domain"
	"github.com/John-Robertt/cinesearch/internal/logging"
	"github.com/John-Robertt/cinesearch/internal/search"
)

// maxPages 是远端允许的最大页码。
const maxPages = 100

type searchFlags struct {
	pages   int
	json    bool
	outPath string
	force   bool
}

func newSearchCmd(a *app) *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles and print the accumulated result pages",
		Example: `  cinesearch search batman
  cinesearch search "the matrix" --pages 3 --json
  cinesearch search batman --out batman.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSearch(cmd, strings.Join(args, " "), f)
		},
	}
	cmd.Flags().IntVar(&f.pages, "pages", 1, "number of pages to load (1-100)")
	cmd.Flags().BoolVar(&f.json, "json", false, "print JSON even on a terminal")
	cmd.Flags().StringVar(&f.outPath, "out", "", "also write the JSON export to this file")
	cmd.Flags().BoolVar(&f.force, "force", false, "overwrite --out if it exists")
	return cmd
}

// runSearch 以非交互方式驱动编排层：SetQuery → Flush → Wait，然后按需 LoadMore。
// 与交互界面走同一条路径，错误文案与分页规则完全一致。
func (a *app) runSearch(cmd *cobra.Command, query string, f searchFlags) error {
	if domain.IsBlankQuery(query) {
		return &exitError{code: 2, msg: "参数错误：query 不能为空"}
	}
	if f.pages < 1 || f.pages > maxPages {
		return &exitError{code: 2, msg: fmt.Sprintf("参数错误：--pages 必须在 1-%d 之间，实际是 %d", maxPages, f.pages)}
	}

	o := search.New(a.client,
		search.WithDebounce(a.eff.Debounce),
		search.WithLogger(logging.Component(a.log, "search")),
		search.WithMetrics(a.metrics),
	)
	defer o.Close()

	o.SetQuery(query)
	o.Flush()
	o.Wait()
	for st := o.State(); st.Page < f.pages && st.HasMore; st = o.State() {
		if !o.LoadMore() {
			break
		}
		o.Wait()
	}

	st := o.State()
	pages := st.Page
	if st.Results == nil && st.Error == "" {
		pages = 0
	}
	exp := domain.NewSearchExport(query, pages, st.Results, st.Error, a.env.now())

	if f.outPath != "" {
		if err := writeJSONFile(f.outPath, exp, f.force); err != nil {
			return &exitError{code: 1, msg: fmt.Sprintf("写入 %s 失败：%v", f.outPath, err)}
		}
	}

	w, tty := a.out(cmd)
	if tty && !f.json {
		printSearchTable(w, exp)
	} else if err := writeJSON(w, exp); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "完成：query=%q count=%d total=%d pages=%d\n", exp.Query, exp.Count, exp.Total, exp.Pages)
	if f.outPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "out: %s\n", f.outPath)
	}

	if exp.Error != "" {
		return &exitError{code: 1}
	}
	return nil
}
