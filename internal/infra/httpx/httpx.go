package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 20 * time.Second
	defaultRetryMax = 2

	// DefaultUserAgent 标识本工具；元数据 API 不需要伪装浏览器。
	DefaultUserAgent = "cinesearch/1.0 (+https://github.com/John-Robertt/cinesearch)"
)

// Transport 把“UA + 客户端限速 + 有界重试”固化为统一策略。
//
// 设计目标：omdb 包只负责“拼请求 + 解析响应”，不关心网络策略细节。
type Transport struct {
	Base http.RoundTripper

	UserAgent string

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax int

	// Limiter 为 nil 时不限速；否则每次尝试前都要拿到令牌。
	Limiter *rate.Limiter
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 {
		max = 0
	}
	if !canRetry {
		max = 0
	}

	ctx := req.Context()
	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		if t.Limiter != nil {
			if err := t.Limiter.Wait(ctx); err != nil {
				// ctx 已取消时返回 ctx.Err()，保证上层能用 errors.Is 识别取消。
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, err
			}
		}

		r := req.Clone(ctx)
		if r.Header.Get("User-Agent") == "" {
			ua := t.UserAgent
			if ua == "" {
				ua = DefaultUserAgent
			}
			r.Header.Set("User-Agent", ua)
		}
		if r.Header.Get("Accept") == "" {
			r.Header.Set("Accept", "application/json")
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			// ctx 已取消：不再重试（被取代的请求不应该继续占用连接）。
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// Options 是 API client 的网络策略。零值即默认值。
type Options struct {
	ProxyURL string
	Timeout  time.Duration
	RetryMax *int

	// RatePerSecond <= 0 表示不做客户端限速。
	RatePerSecond float64
	Burst         int

	UserAgent string
}

// NewAPIClient 构造用于元数据 API 的 HTTP client。
//
// 规则：
// - ProxyURL 非空：所有请求走代理
// - keep-alive 保持默认（同一域名的短请求很多）
// - 有界重试 + 总超时；取消是上层唯一的“过期”手段，这里不再额外加策略
func NewAPIClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		MaxIdleConns:          20,
		MaxConnsPerHost:       20,
		IdleConnTimeout:       30 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}

	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
	}

	retry := defaultRetryMax
	if opts.RetryMax != nil {
		retry = *opts.RetryMax
	}

	tr := &Transport{
		Base:      base,
		UserAgent: strings.TrimSpace(opts.UserAgent),
		RetryMax:  retry,
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		tr.Limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}
