package detail

import (
	"strings"

	"github.com/John-Robertt/cinesearch/internal/omdb"
)

// 面向用户的错误文案。
// 与搜索不同：详情的传输层失败不区分 401/429，统一提示重试。
const (
	MsgRequestLimit = "API request limit reached. Please try again later."
	MsgUnavailable  = "Could not load movie details."
	MsgFailed       = "Failed to load movie details. Please try again."
)

// bodyMessage 把 body 层失败映射为文案：额度用尽单独提示，其它透传远端原文（为空时用兜底文案）。
func bodyMessage(remoteErr string) string {
	if remoteErr == omdb.ErrRequestLimit {
		return MsgRequestLimit
	}
	if msg := strings.TrimSpace(remoteErr); msg != "" {
		return msg
	}
	return MsgUnavailable
}
