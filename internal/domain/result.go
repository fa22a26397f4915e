package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SearchResultSet 是一次（或多页累积的）搜索结果。
//
// 不变量：
// - Records 保持页序（先到的页在前）
// - 远端一致时 len(Records) <= Total：HasMore 在达到 Total 后停止翻页
type SearchResultSet struct {
	Records []SummaryRecord `json:"records"`
	Total   int             `json:"total"`
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
}

// Clone 复制 Records，保证快照与内部状态互不影响。
func (s *SearchResultSet) Clone() *SearchResultSet {
	if s == nil {
		return nil
	}
	c := *s
	c.Records = append([]SummaryRecord(nil), s.Records...)
	return &c
}

// HasMore 判断在已加载 page 页之后是否还有下一页。
//
// 规则：本页至少返回 1 条，且 total > page*PageSize。
func HasMore(pageLen, total, page int) bool {
	return pageLen >= 1 && total > page*PageSize
}

// NormalizeQuery 去掉首尾空白并做 NFC 规范化（组合字符与预组合字符视为同一查询）。
func NormalizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	return norm.NFC.String(q)
}

// IsBlankQuery 判断查询是否“无效”（空串或全空白）。
func IsBlankQuery(q string) bool { return strings.TrimSpace(q) == "" }
