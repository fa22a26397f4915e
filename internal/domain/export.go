package domain

import "time"

// SearchExport 是 `cinesearch search` 对外稳定输出（stdout JSON / --out 文件）的结构。
type SearchExport struct {
	Query string `json:"query"`
	Pages int    `json:"pages"`

	Total int    `json:"total"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`

	ExportedAt time.Time       `json:"exported_at"`
	Records    []SummaryRecord `json:"records"`
}

// NewSearchExport 由当前累积结果构造导出文档（rs 可以为 nil：表示没有结果）。
func NewSearchExport(query string, pages int, rs *SearchResultSet, errMsg string, now time.Time) SearchExport {
	e := SearchExport{
		Query:      query,
		Pages:      pages,
		Error:      errMsg,
		ExportedAt: now,
	}
	if rs != nil {
		e.Total = rs.Total
		e.Records = append([]SummaryRecord(nil), rs.Records...)
	}
	e.Finalize()
	return e
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（JSON 为 RFC3339 且后缀 Z）
// 2) count 由 records 计算得出；records 为 nil 时输出 []
func (e *SearchExport) Finalize() {
	e.ExportedAt = e.ExportedAt.UTC()
	if e.Records == nil {
		e.Records = []SummaryRecord{}
	}
	e.Count = len(e.Records)
}

// DetailExport 是 `cinesearch detail` 的 stdout JSON 结构。Record 为 nil 表示加载失败。
type DetailExport struct {
	IMDbID IMDbID `json:"imdb_id"`
	Error  string `json:"error,omitempty"`

	ExportedAt time.Time     `json:"exported_at"`
	Record     *DetailRecord `json:"record"`
}

func NewDetailExport(id IMDbID, rec *DetailRecord, errMsg string, now time.Time) DetailExport {
	e := DetailExport{IMDbID: id, Error: errMsg, ExportedAt: now.UTC()}
	if rec != nil {
		r := rec.Clone()
		e.Record = &r
	}
	return e
}
