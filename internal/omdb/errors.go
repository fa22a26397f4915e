package omdb

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRequestLimit 是远端在 body 中报告“额度用尽”时的 Error 原文。
// 上层必须把它与其它 Error 文案区分开。
const ErrRequestLimit = "Request limit reached!"

// HTTPStatusError 表示 API 返回了非 2xx 的 HTTP 状态码（传输层失败）。
//
// 注意：body 中的 Response:"False" 不是 HTTPStatusError，而是 OK=false 的正常结果。
type HTTPStatusError struct {
	URL        string // 已脱敏（apikey=***）
	StatusCode int

	// PageTitle 是网关/CDN 返回 HTML 页面时的 <title>，便于定位问题（可能为空）。
	PageTitle string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	title := strings.TrimSpace(e.PageTitle)
	if title == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d title=%q", e.StatusCode, title)
}

// StatusCode 从 error 链中取出 HTTP 状态码；不是 HTTPStatusError 时返回 0。
func StatusCode(err error) int {
	var e *HTTPStatusError
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// DecodeError 表示 2xx 响应的 body 不是预期的 JSON。
// 常见原因是代理/门户返回了 HTML 页面。
type DecodeError struct {
	URL       string
	PageTitle string
	Err       error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "decode error"
	}
	if t := strings.TrimSpace(e.PageTitle); t != "" {
		return fmt.Sprintf("响应不是 JSON（HTML 页面 %q）：%v", t, e.Err)
	}
	return fmt.Sprintf("响应不是 JSON：%v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
