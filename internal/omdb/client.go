package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/cinesearch/internal/domain"
	"github.com/John-Robertt/cinesearch/internal/metrics"
)

// DefaultBaseURL 是 OMDb 的公共入口。
const DefaultBaseURL = "https://www.omdbapi.com/"

const (
	maxBodyBytes  = 4 << 20
	maxErrorBytes = 64 << 10
)

// Client 是元数据 API 的最小客户端（搜索 + 详情）。
//
// 约束：
// - 不做缓存、不做去重、不做重试（重试/限速在 httpx，去重在 detail.Loader）
// - body 中的 Response:"False" 作为 OK=false 的结果返回，不是 error
// - 传输层失败（非 2xx、网络错误、取消）才返回 error
// - apikey 不出现在任何 error / 日志里
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// NewClient 构造 Client；baseURL 为空时使用 DefaultBaseURL，hc 为空时使用 http.DefaultClient。
func NewClient(baseURL, apiKey string, hc *http.Client, logger *zerolog.Logger, m *metrics.Metrics) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP:    hc,
		Logger:  l,
		Metrics: m,
	}
}

// Search 请求第 page 页搜索结果：GET <base>?apikey=<key>&s=<query>&page=<n>
func (c *Client) Search(ctx context.Context, query string, page int) (domain.SearchResultSet, error) {
	q := domain.NormalizeQuery(query)
	if q == "" {
		return domain.SearchResultSet{}, errors.New("omdb: query 不能为空")
	}
	if page < 1 {
		page = 1
	}

	v := url.Values{}
	v.Set("s", q)
	v.Set("page", strconv.Itoa(page))

	var w searchResponse
	if err := c.get(ctx, metrics.KindSearch, v, &w); err != nil {
		return domain.SearchResultSet{}, err
	}
	rs := w.toDomain()
	c.observeBody(metrics.KindSearch, rs.OK, rs.Error)
	return rs, nil
}

// Detail 请求单条完整记录：GET <base>?apikey=<key>&i=<id>&plot=full
func (c *Client) Detail(ctx context.Context, id domain.IMDbID) (domain.DetailRecord, error) {
	key := strings.TrimSpace(string(id))
	if key == "" {
		return domain.DetailRecord{}, errors.New("omdb: id 不能为空")
	}

	v := url.Values{}
	v.Set("i", key)
	v.Set("plot", "full")

	var w detailResponse
	if err := c.get(ctx, metrics.KindDetail, v, &w); err != nil {
		return domain.DetailRecord{}, err
	}
	d := w.toDomain()
	c.observeBody(metrics.KindDetail, d.OK, d.Error)
	return d, nil
}

func (c *Client) get(ctx context.Context, kind string, params url.Values, out any) error {
	u, err := c.buildURL(params)
	if err != nil {
		return err
	}
	safe := redactURL(u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	started := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		took := time.Since(started)
		outcome := metrics.OutcomeError
		if errors.Is(err, context.Canceled) {
			outcome = metrics.OutcomeCanceled
		}
		c.Metrics.ObserveRequest(kind, outcome, took)
		c.Logger.Debug().Str("kind", kind).Str("url", safe).Dur("took", took).Err(scrubErr(err, c.APIKey)).Msg("omdb 请求失败")
		// url.Error 里带着完整 URL（含 apikey）：换成脱敏版本，但保留 Unwrap 链。
		return &url.Error{Op: "Get", URL: safe, Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()
	took := time.Since(started)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		se := &HTTPStatusError{URL: safe, StatusCode: resp.StatusCode}
		if looksLikeHTML(resp.Header.Get("Content-Type"), b) {
			se.PageTitle = htmlTitle(b)
		}
		outcome := metrics.OutcomeHTTPError
		if resp.StatusCode == http.StatusTooManyRequests {
			outcome = metrics.OutcomeRateLimited
		}
		c.Metrics.ObserveRequest(kind, outcome, took)
		c.Logger.Debug().Str("kind", kind).Str("url", safe).Int("status", resp.StatusCode).Dur("took", took).Msg("omdb 返回非 2xx")
		return se
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.Metrics.ObserveRequest(kind, metrics.OutcomeError, took)
		return &url.Error{Op: "Get", URL: safe, Err: err}
	}
	if err := json.Unmarshal(b, out); err != nil {
		de := &DecodeError{URL: safe, Err: err}
		if looksLikeHTML(resp.Header.Get("Content-Type"), b) {
			de.PageTitle = htmlTitle(b)
		}
		c.Metrics.ObserveRequest(kind, metrics.OutcomeError, took)
		return de
	}

	c.Metrics.ObserveDuration(kind, took)
	c.Logger.Debug().Str("kind", kind).Str("url", safe).Int("status", resp.StatusCode).Dur("took", took).Msg("omdb 请求完成")
	return nil
}

// observeBody 按 body 层结果计数（时延已在 get 中记录）。
func (c *Client) observeBody(kind string, ok bool, remoteErr string) {
	outcome := metrics.OutcomeOK
	switch {
	case ok:
	case remoteErr == ErrRequestLimit:
		outcome = metrics.OutcomeRateLimited
	default:
		outcome = metrics.OutcomeNotFound
	}
	c.Metrics.CountRequest(kind, outcome)
}

// buildURL 在 BaseURL 已有的 query 之上追加 apikey 与本次参数。
func (c *Client) buildURL(params url.Values) (string, error) {
	bu, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	q := bu.Query()
	if c.APIKey != "" {
		q.Set("apikey", c.APIKey)
	}
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	bu.RawQuery = q.Encode()
	return bu.String(), nil
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("apikey") != "" {
		q.Set("apikey", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}

// scrubErr 只用于日志：把 error 文本中的 apikey 抹掉。
func scrubErr(err error, apiKey string) error {
	if err == nil || apiKey == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, apiKey) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, apiKey, "***"))
}
