package nfo

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/John-Robertt/cinesearch/internal/domain"
)

type movie struct {
	XMLName xml.Name `xml:"movie"`

	Title     string `xml:"title"`
	SortTitle string `xml:"sorttitle"`

	UniqueIDs []uniqueID `xml:"uniqueid,omitempty"`

	Premiered string `xml:"premiered,omitempty"`
	Year      int    `xml:"year,omitempty"`
	Runtime   int    `xml:"runtime,omitempty"`
	MPAA      string `xml:"mpaa,omitempty"`

	Plot    string `xml:"plot,omitempty"`
	Outline string `xml:"outline,omitempty"`

	Ratings *ratings `xml:"ratings,omitempty"`

	Genres    []string `xml:"genre,omitempty"`
	Countries []string `xml:"country,omitempty"`
	Directors []string `xml:"director,omitempty"`
	Credits   []string `xml:"credits,omitempty"`
	Studio    string   `xml:"studio,omitempty"`

	Thumb *thumb `xml:"thumb,omitempty"`

	Actors []actor `xml:"actor,omitempty"`

	Website string `xml:"website,omitempty"`
}

type uniqueID struct {
	Type    string `xml:"type,attr"`
	Default bool   `xml:"default,attr"`
	Value   string `xml:",chardata"`
}

type ratings struct {
	Items []rating `xml:"rating"`
}

type rating struct {
	Name    string  `xml:"name,attr"`
	Max     int     `xml:"max,attr"`
	Default bool    `xml:"default,attr,omitempty"`
	Value   float64 `xml:"value"`
	Votes   int     `xml:"votes,omitempty"`
}

type thumb struct {
	Aspect string `xml:"aspect,attr"`
	URL    string `xml:",chardata"`
}

type actor struct {
	Name  string `xml:"name"`
	Order int    `xml:"order"`
}

// Encode 把 DetailRecord 转成 Kodi/Jellyfin/Emby 可读取的 NFO（XML）。
//
// 规则：
// - 远端的 "N/A" 视为缺失；缺失字段不输出
// - 逗号分隔的字段拆成列表（去空白、去重、保持输入顺序）
// - title 为空时回退到 IMDb ID（避免生成空 title）
func Encode(rec domain.DetailRecord) ([]byte, error) {
	id := strings.TrimSpace(string(rec.IMDbID))
	title := clean(rec.Title)
	if title == "" {
		title = id
	}

	m := movie{
		Title:     title,
		SortTitle: title,

		Premiered: releaseDate(rec.Released),
		Year:      leadingYear(rec.Year),
		Runtime:   runtimeMinutes(rec.Runtime),
		MPAA:      clean(rec.Rated),

		Plot:    clean(rec.Plot),
		Outline: clean(rec.Plot),

		Genres:    domain.SplitList(rec.Genre),
		Countries: domain.SplitList(rec.Country),
		Directors: domain.SplitList(rec.Director),
		Credits:   domain.SplitList(rec.Writer),
		Studio:    clean(rec.Production),

		Website: clean(rec.Website),
	}

	if id != "" {
		m.UniqueIDs = []uniqueID{{Type: "imdb", Default: true, Value: id}}
	}
	if rec.HasPoster() {
		m.Thumb = &thumb{Aspect: "poster", URL: strings.TrimSpace(rec.Poster)}
	}
	if rs := buildRatings(rec); len(rs) > 0 {
		m.Ratings = &ratings{Items: rs}
	}
	for i, a := range domain.SplitList(rec.Actors) {
		m.Actors = append(m.Actors, actor{Name: a, Order: i})
	}

	b, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	// 约定：输出带 standalone="yes" 的 XML 头，便于与常见刮削器产物兼容。
	const header = `<?xml version="1.0" encoding="UTF-8" standalone="yes" ?>` + "\n"
	return append([]byte(header), b...), nil
}

// buildRatings 以 imdbRating 为默认评分；Ratings 中的其它来源按 Kodi 的命名追加。
func buildRatings(rec domain.DetailRecord) []rating {
	var out []rating
	seen := map[string]bool{}

	if v, ok := parseScore(rec.IMDbRating); ok {
		out = append(out, rating{Name: "imdb", Max: 10, Default: true, Value: v, Votes: parseVotes(rec.IMDbVotes)})
		seen["imdb"] = true
	}
	for _, r := range rec.Ratings {
		name, maxScore := ratingName(r.Source)
		if name == "" || seen[name] {
			continue
		}
		v, ok := parseScore(r.Value)
		if !ok {
			continue
		}
		out = append(out, rating{Name: name, Max: maxScore, Default: len(out) == 0, Value: v})
		seen[name] = true
	}
	if _, ok := seen["metacritic"]; !ok {
		if v, ok := parseScore(rec.Metascore); ok {
			out = append(out, rating{Name: "metacritic", Max: 100, Default: len(out) == 0, Value: v})
		}
	}
	return out
}

func ratingName(source string) (string, int) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "internet movie database":
		return "imdb", 10
	case "rotten tomatoes":
		return "tomatometerallcritics", 100
	case "metacritic":
		return "metacritic", 100
	default:
		return "", 0
	}
}

// parseScore 解析 "8.2"、"8.2/10"、"85%"、"74/100" 这类评分文本，取分子部分。
func parseScore(s string) (float64, bool) {
	s = clean(s)
	if s == "" {
		return 0, false
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseVotes 解析 "1,532,017" 这类带千分位的票数；无法解析时为 0。
func parseVotes(s string) int {
	s = strings.ReplaceAll(clean(s), ",", "")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// runtimeMinutes 解析 "140 min"。
func runtimeMinutes(s string) int {
	f := strings.Fields(clean(s))
	if len(f) == 0 {
		return 0
	}
	n, err := strconv.Atoi(f[0])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// leadingYear 取年份字段的前 4 位（剧集年份可能是 "2005–2012"）。
func leadingYear(s string) int {
	s = clean(s)
	if len(s) < 4 {
		return 0
	}
	n, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0
	}
	return n
}

// releaseDate 把 "15 Jun 2005" 转成 "2005-06-15"；无法解析时原样保留。
func releaseDate(s string) string {
	s = clean(s)
	if s == "" {
		return ""
	}
	if t, err := time.Parse("02 Jan 2006", s); err == nil {
		return t.Format("2006-01-02")
	}
	return s
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, domain.PosterUnavailable) {
		return ""
	}
	return s
}
