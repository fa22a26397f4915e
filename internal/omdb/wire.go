package omdb

import (
	"strconv"
	"strings"

	"github.com/John-Robertt/cinesearch/internal/domain"
)

// 远端 JSON 的字段名大小写不统一（Title / imdbID / totalResults），这里原样映射。

type searchResponse struct {
	Search       []searchItem `json:"Search"`
	TotalResults string       `json:"totalResults"`
	Response     string       `json:"Response"`
	Error        string       `json:"Error"`
}

type searchItem struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	IMDbID string `json:"imdbID"`
	Type   string `json:"Type"`
	Poster string `json:"Poster"`
}

type detailResponse struct {
	searchItem

	Rated      string       `json:"Rated"`
	Released   string       `json:"Released"`
	Runtime    string       `json:"Runtime"`
	Genre      string       `json:"Genre"`
	Director   string       `json:"Director"`
	Writer     string       `json:"Writer"`
	Actors     string       `json:"Actors"`
	Plot       string       `json:"Plot"`
	Language   string       `json:"Language"`
	Country    string       `json:"Country"`
	Awards     string       `json:"Awards"`
	Ratings    []wireRating `json:"Ratings"`
	Metascore  string       `json:"Metascore"`
	IMDbRating string       `json:"imdbRating"`
	IMDbVotes  string       `json:"imdbVotes"`
	BoxOffice  string       `json:"BoxOffice"`
	Production string       `json:"Production"`
	Website    string       `json:"Website"`

	Response string `json:"Response"`
	Error    string `json:"Error"`
}

type wireRating struct {
	Source string `json:"Source"`
	Value  string `json:"Value"`
}

func isTrue(s string) bool { return strings.EqualFold(strings.TrimSpace(s), "True") }

func (it searchItem) toSummary() domain.SummaryRecord {
	id, ok := domain.ParseIMDbID(it.IMDbID)
	if !ok {
		// 远端偶尔给出非常规 ID：保留原文，避免丢条目。
		id = domain.IMDbID(strings.TrimSpace(it.IMDbID))
	}
	return domain.SummaryRecord{
		IMDbID: id,
		Title:  strings.TrimSpace(it.Title),
		Year:   strings.TrimSpace(it.Year),
		Type:   strings.TrimSpace(it.Type),
		Poster: strings.TrimSpace(it.Poster),
	}
}

func (w searchResponse) toDomain() domain.SearchResultSet {
	rs := domain.SearchResultSet{
		OK:    isTrue(w.Response),
		Error: strings.TrimSpace(w.Error),
	}
	if !rs.OK {
		return rs
	}
	rs.Total, _ = strconv.Atoi(strings.TrimSpace(w.TotalResults))
	rs.Records = make([]domain.SummaryRecord, 0, len(w.Search))
	for _, it := range w.Search {
		rs.Records = append(rs.Records, it.toSummary())
	}
	return rs
}

func (w detailResponse) toDomain() domain.DetailRecord {
	d := domain.DetailRecord{
		OK:    isTrue(w.Response),
		Error: strings.TrimSpace(w.Error),
	}
	if !d.OK {
		return d
	}
	d.SummaryRecord = w.searchItem.toSummary()
	d.Rated = w.Rated
	d.Released = w.Released
	d.Runtime = w.Runtime
	d.Genre = w.Genre
	d.Director = w.Director
	d.Writer = w.Writer
	d.Actors = w.Actors
	d.Plot = w.Plot
	d.Language = w.Language
	d.Country = w.Country
	d.Awards = w.Awards
	d.Metascore = w.Metascore
	d.IMDbRating = w.IMDbRating
	d.IMDbVotes = w.IMDbVotes
	d.BoxOffice = w.BoxOffice
	d.Production = w.Production
	d.Website = w.Website
	if len(w.Ratings) > 0 {
		d.Ratings = make([]domain.Rating, 0, len(w.Ratings))
		for _, r := range w.Ratings {
			d.Ratings = append(d.Ratings, domain.Rating{Source: r.Source, Value: r.Value})
		}
	}
	return d
}
