package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/John-Robertt/cinesearch/internal/domain"
	"github.com/John-Robertt/cinesearch/internal/infra/fsx"
)

// writeJSON 在 stdout 上输出且仅输出一个 JSON 文档（日志/摘要走 stderr）。
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any, force bool) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	mode := fsx.NoOverwrite
	if force {
		mode = fsx.Replace
	}
	return fsx.WriteFile(path, b, mode)
}

func printSearchTable(w io.Writer, exp domain.SearchExport) {
	if exp.Error != "" {
		fmt.Fprintln(w, exp.Error)
		return
	}
	if exp.Count == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IMDB ID\tYEAR\tTYPE\tTITLE")
	for _, r := range exp.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.IMDbID, r.Year, r.Type, truncate(r.Title, 80))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d of %d results (%d page(s))\n", exp.Count, exp.Total, exp.Pages)
}

func printDetail(w io.Writer, exp domain.DetailExport) {
	if exp.Record == nil {
		fmt.Fprintln(w, exp.Error)
		return
	}
	r := exp.Record
	fmt.Fprintf(w, "%s (%s)  %s\n", r.Title, r.Year, r.IMDbID)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	field := func(label, v string) {
		v = strings.TrimSpace(v)
		if v == "" || v == domain.PosterUnavailable {
			return
		}
		fmt.Fprintf(tw, "  %s:\t%s\n", label, truncate(v, 160))
	}
	field("Rated", r.Rated)
	field("Released", r.Released)
	field("Runtime", r.Runtime)
	field("Genre", r.Genre)
	field("Director", r.Director)
	field("Writer", r.Writer)
	field("Actors", r.Actors)
	field("Country", r.Country)
	field("Awards", r.Awards)
	for _, rt := range r.Ratings {
		field(rt.Source, rt.Value)
	}
	field("IMDb votes", r.IMDbVotes)
	field("Box office", r.BoxOffice)
	_ = tw.Flush()
	if p := strings.TrimSpace(r.Plot); p != "" && p != domain.PosterUnavailable {
		fmt.Fprintf(w, "\n%s\n", p)
	}
}

// formatProxy 只展示 scheme/host 以及是否带认证，不打印凭据。
func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
