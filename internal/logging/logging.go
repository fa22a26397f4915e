// Package logging 构造全局共用的 zerolog.Logger。
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// 日志格式。
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options 描述 logger 的输出方式。零值：info 级别、人类可读格式、写 stderr。
type Options struct {
	Level  string
	Format string
	Out    io.Writer

	// File 非空时日志追加写入该文件而不是 Out（交互界面下避免污染终端）。
	File string

	NoColor bool
}

// Result 持有构造好的 logger 以及需要在退出时关闭的文件句柄。
type Result struct {
	Logger zerolog.Logger
	file   *os.File
}

func (r *Result) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// ParseLevel 解析级别名；空串为 info，无法识别时返回错误。
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("未知日志级别 %q", s)
	}
	if lvl == zerolog.NoLevel {
		return zerolog.InfoLevel, nil
	}
	return lvl, nil
}

// New 按 Options 构造 logger。级别无法识别时回退到 info（配置层已提前校验）。
func New(opts Options) (*Result, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	res := &Result{}
	if p := strings.TrimSpace(opts.File); p != "" {
		f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败：%w", err)
		}
		res.file = f
		out = f
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	var w io.Writer = out
	if format != FormatJSON {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor || res.file != nil,
		}
	}

	res.Logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return res, nil
}

// Component 返回带 component 字段的子 logger。
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
