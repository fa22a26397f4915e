package domain

import "strings"

// PageSize 是远端固定的每页条数（不可配置）。
const PageSize = 10

// PosterUnavailable 是远端表示“无海报”的哨兵值。
const PosterUnavailable = "N/A"

// SummaryRecord 是搜索列表中的单条轻量记录。
type SummaryRecord struct {
	IMDbID IMDbID `json:"imdb_id"`
	Title  string `json:"title"`
	Year   string `json:"year"` // 剧集可能是区间，例如 "2005–2012"
	Type   string `json:"type"` // movie / series / episode / game
	Poster string `json:"poster"`
}

// HasPoster 判断海报 URL 是否可用（空串或哨兵值都视为不可用）。
func (r SummaryRecord) HasPoster() bool {
	p := strings.TrimSpace(r.Poster)
	return p != "" && !strings.EqualFold(p, PosterUnavailable)
}

// Rating 是某个来源给出的评分（例如 Rotten Tomatoes 的 "85%"）。
type Rating struct {
	Source string `json:"source"`
	Value  string `json:"value"`
}

// DetailRecord 是按需拉取的完整记录，是 SummaryRecord 的超集。
//
// OK/Error 与 SearchResultSet 同形：OK=false 表示远端在 body 中明确报告失败
// （Response:"False"），此时 Error 是远端原文。
type DetailRecord struct {
	SummaryRecord

	Rated      string   `json:"rated,omitempty"`
	Released   string   `json:"released,omitempty"`
	Runtime    string   `json:"runtime,omitempty"`
	Genre      string   `json:"genre,omitempty"`
	Director   string   `json:"director,omitempty"`
	Writer     string   `json:"writer,omitempty"`
	Actors     string   `json:"actors,omitempty"`
	Plot       string   `json:"plot,omitempty"`
	Language   string   `json:"language,omitempty"`
	Country    string   `json:"country,omitempty"`
	Awards     string   `json:"awards,omitempty"`
	Ratings    []Rating `json:"ratings,omitempty"`
	Metascore  string   `json:"metascore,omitempty"`
	IMDbRating string   `json:"imdb_rating,omitempty"`
	IMDbVotes  string   `json:"imdb_votes,omitempty"`
	BoxOffice  string   `json:"box_office,omitempty"`
	Production string   `json:"production,omitempty"`
	Website    string   `json:"website,omitempty"`

	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Clone 返回不与 d 共享 Ratings 底层数组的副本。
func (d DetailRecord) Clone() DetailRecord {
	if d.Ratings != nil {
		d.Ratings = append([]Rating(nil), d.Ratings...)
	}
	return d
}

// SplitList 把远端逗号分隔的字段（Genre/Actors/Director…）拆成去空白、去重的列表。
// "N/A" 视为空。
func SplitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, PosterUnavailable) {
		return nil
	}
	parts := strings.Split(s, ",")
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
