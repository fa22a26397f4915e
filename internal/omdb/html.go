package omdb

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// looksLikeHTML 只看 Content-Type 与 body 开头，不做完整嗅探。
func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	b := bytes.TrimSpace(body)
	return len(b) > 0 && b[0] == '<'
}

// htmlTitle 提取 HTML 页面的 <title>（找不到时回退到第一个 h1）。
// 解析失败不是错误：诊断信息缺失时返回空串即可。
func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	title := normSpace(doc.Find("title").First().Text())
	if title == "" {
		title = normSpace(doc.Find("h1").First().Text())
	}
	return truncate(title, 120)
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
