package search

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/cinesearch/internal/debounce"
	"github.com/John-Robertt/cinesearch/internal/domain"
)

// fakeAPI 把每次 Search 调用交给测试，由测试决定何时、以什么结果返回。
// 它故意忽略 ctx：用来模拟“已被取消的请求仍然晚到”的情况。
type fakeAPI struct {
	calls chan *searchCall
}

type searchCall struct {
	Query string
	Page  int
	ctx   context.Context
	reply chan searchReply
}

type searchReply struct {
	rs  domain.SearchResultSet
	err error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(chan *searchCall, 32)}
}

func (f *fakeAPI) Search(ctx context.Context, query string, page int) (domain.SearchResultSet, error) {
	c := &searchCall{Query: query, Page: page, ctx: ctx, reply: make(chan searchReply, 1)}
	f.calls <- c
	r := <-c.reply
	return r.rs, r.err
}

func (c *searchCall) respond(rs domain.SearchResultSet, err error) {
	c.reply <- searchReply{rs: rs, err: err}
}

func (f *fakeAPI) next(t *testing.T) *searchCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("等待搜索请求超时")
		return nil
	}
}

func (f *fakeAPI) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("不期望发出请求：query=%q page=%d", c.Query, c.Page)
	case <-time.After(50 * time.Millisecond):
	}
}

// manualTimers 让防抖计时器永不自行到期；测试通过 Flush 或 expire 推进。
type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (m *manualTimers) after(_ time.Duration, f func()) debounce.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{f: f}
	m.timers = append(m.timers, t)
	return t
}

// page 生成第 start 条起的 n 条记录，total 为远端报告的总数。
func page(start, n, total int) domain.SearchResultSet {
	rs := domain.SearchResultSet{Total: total, OK: true}
	for i := 0; i < n; i++ {
		id := start + i
		rs.Records = append(rs.Records, domain.SummaryRecord{
			IMDbID: domain.IMDbID(fmt.Sprintf("tt%07d", id)),
			Title:  fmt.Sprintf("Movie %d", id),
			Year:   "2005",
			Type:   "movie",
			Poster: domain.PosterUnavailable,
		})
	}
	return rs
}

// instantAPI 立即返回固定结果。
type instantAPI struct {
	rs domain.SearchResultSet
}

func (a instantAPI) Search(context.Context, string, int) (domain.SearchResultSet, error) {
	return a.rs, nil
}
