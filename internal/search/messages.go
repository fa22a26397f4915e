package search

import (
	"context"
	"errors"
	"net/http"

	"github.com/John-Robertt/cinesearch/internal/omdb"
)

// 面向用户的错误文案。所有失败最终都收敛为其中之一，不向展示层抛 error。
const (
	MsgRequestLimit    = "API request limit reached. Please try again later."
	MsgNoResults       = "No movies found. Try a different search."
	MsgInvalidAPIKey   = "Invalid or missing API key. Check your configuration."
	MsgTooManyRequests = "Too many requests. Please wait a moment and try again."
	MsgSearchFailed    = "Something went wrong while searching. Please try again."
)

// bodyMessage 把 body 层失败（Response:"False"）映射为文案。
// 额度用尽单独提示；其它一律视为“无结果”（不透传远端原文）。
func bodyMessage(remoteErr string) string {
	if remoteErr == omdb.ErrRequestLimit {
		return MsgRequestLimit
	}
	return MsgNoResults
}

// transportMessage 把传输层失败映射为文案（调用方已排除取消）。
func transportMessage(err error) string {
	switch omdb.StatusCode(err) {
	case http.StatusUnauthorized:
		return MsgInvalidAPIKey
	case http.StatusTooManyRequests:
		return MsgTooManyRequests
	default:
		return MsgSearchFailed
	}
}

// isCanceled 判断失败是否源于主动取消（被取代或被关闭）。
func isCanceled(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || ctx.Err() != nil
}
