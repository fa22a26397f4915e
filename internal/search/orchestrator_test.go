package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/cinesearch/internal/domain"
	"github.com/John-Robertt/cinesearch/internal/metrics"
	"github.com/John-Robertt/cinesearch/internal/omdb"
)

func newTestOrchestrator(t *testing.T, api API, opts ...Option) (*Orchestrator, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(nil)
	timers := &manualTimers{}
	all := append([]Option{WithAfterFunc(timers.after), WithMetrics(m)}, opts...)
	o := New(api, all...)
	t.Cleanup(o.Close)
	return o, m
}

func waitIdle(t *testing.T, o *Orchestrator) State {
	t.Helper()
	require.Eventually(t, func() bool { return !o.State().Loading }, 2*time.Second, 5*time.Millisecond)
	return o.State()
}

// 把 query 跑到“第 1 页已落地”的状态。
func loadFirstPage(t *testing.T, o *Orchestrator, api *fakeAPI, query string, rs domain.SearchResultSet) State {
	t.Helper()
	o.SetQuery(query)
	require.True(t, o.Flush())
	c := api.next(t)
	require.Equal(t, 1, c.Page)
	c.respond(rs, nil)
	return waitIdle(t, o)
}

func TestSetQuery_DebounceCollapsesToLastText(t *testing.T) {
	api := newFakeAPI()
	o, _ := newTestOrchestrator(t, api)

	for _, q := range []string{"b", "ba", "bat", "batm", "batman"} {
		o.SetQuery(q)
	}
	assert.Equal(t, "batman", o.State().Query, "query 应同步替换")
	api.expectNoCall(t)

	require.True(t, o.Flush())
	c := api.next(t)
	assert.Equal(t, "batman", c.Query)
	assert.Equal(t, 1, c.Page)
	c.respond(page(1, 3, 3), nil)

	api.expectNoCall(t)
}

func TestSetQuery_RealDebounceWindow(t *testing.T) {
	api := newFakeAPI()
	o := New(api, WithDebounce(30*time.Millisecond))
	t.Cleanup(o.Close)

	for _, q := range []string{"a", "al", "ali", "alien"} {
		o.SetQuery(q)
		time.Sleep(2 * time.Millisecond)
	}

	c := api.next(t)
	assert.Equal(t, "alien", c.Query)
	c.respond(page(1, 1, 1), nil)
	api.expectNoCall(t)
}

func TestSetQuery_BlankClearsWithoutNetwork(t *testing.T) {
	api := newFakeAPI()
	o, _ := newTestOrchestrator(t, api)

	st := loadFirstPage(t, o, api, "batman", page(1, 10, 100))
	require.True(t, st.HasMore)

	// 再发起一次在途请求，随后清空 query：在途请求必须被取消。
	o.SetQuery("joker")
	o.Flush()
	inflight := api.next(t)

	o.SetQuery("   ")
	st = o.State()
	assert.Nil(t, st.Results)
	assert.Equal(t, 1, st.Page)
	assert.False(t, st.HasMore)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)

	select {
	case <-inflight.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("清空 query 时在途请求应被取消")
	}
	inflight.respond(page(1, 10, 10), nil)

	assert.False(t, o.Flush(), "清空 query 后不应有待执行的防抖")
	api.expectNoCall(t)
	require.Eventually(t, func() bool { return o.State().Results == nil }, time.Second, 5*time.Millisecond)
}

func TestBatmanScenario_LoadMoreAppends(t *testing.T) {
	api := newFakeAPI()
	o, _ := newTestOrchestrator(t, api)

	first := page(1, 10, 100)
	st := loadFirstPage(t, o, api, "batman", first)
	require.NotNil(t, st.Results)
	assert.Len(t, st.Results.Records, 10)
	assert.Equal(t, 100, st.Results.Total)
	assert.True(t, st.HasMore)

	require.True(t, o.LoadMore())
	c := api.next(t)
	assert.Equal(t, "batman", c.Query)
	assert.Equal(t, 2, c.Page)
	second := page(11, 10, 100)
	c.respond(second, nil)

	st = waitIdle(t, o)
	require.NotNil(t, st.Results)
	assert.Equal(t, 2, st.Page)
	assert.True(t, st.HasMore, "100 > 20 时应还有更多")
	want := append(append([]domain.SummaryRecord(nil), first.Records...), second.Records...)
	assert.Equal(t, want, st.Results.Records, "追加必须保持顺序与长度")
}

func TestPageOne_ReplacesPreviousQuery(t *testing.T) {
	api := newFakeAPI()
	o, _ := newTestOrchestrator(t, api)

	loadFirstPage(t, o, api, "batman", page(1, 10, 100))
	require.True(t, o.LoadMore())
	api.next(t).respond(page(11, 10, 100), nil)
	waitIdle(t, o)

	robin := page(500, 4, 4)
	st := loadFirstPage(t, o, api, "robin", robin)
	require.NotNil(t, st.Results)
	assert.Equal(t, robin.Records, st.Results.Records, "新 query 的第 1 页不应混入旧结果")
	assert.Equal(t, 1, st.Page)
	assert.False(t, st.HasMore)
}

func TestHasMore_FalseWhenTotalReachedOrEmptyPage(t *testing.T) {
	api := newFakeAPI()
	o, _ := newTestOrchestrator(t, api)

	st := loadFirstPage(t, o, api, "exact", page(1, 10, 10))
	assert.False(t, st.HasMore, "total == page*10 时没有更多")

	st = loadFirstPage(t, o, api, "few", page(1, 7, 7))
	assert.False(t, st.HasMore)

	st = loadFirstPage(t, o, api, "liar", page(1, 10, 30))
	require.True(t, st.HasMore)
	require.True(t, o.LoadMore())
	api.next(t).respond(domain.SearchResultSet{Total: 30, OK: true}, nil)
	st = waitIdle(t, o)
	assert.False(t, st.HasMore, "本页 0 条时没有更多")
	assert.Len(t, st.Results.Records, 10)
}

func TestLoadMore_NoopWhenHasMoreFalse(t *testing.T) {
	api := newFakeAPI()
	o, _ := newTestOrchestrator(t, api)

	loadFirstPage(t, o, api, "short", page(1, 5, 5))
	assert.False(t, o.LoadMore())
	api.expectNoCall(t)
}

func TestLoadMore_NoopWhileLoading(t *testing.T) {
	api := newFakeAPI()
	o, _ := newTestOrchestrator(t, api)

	loadFirstPage(t, o, api, "batman", page(1, 10, 100))
	require.True(t, o.LoadMore())
	c := api.next(t)
	require.True(t, o.State().Loading)

	assert.False(t, o.LoadMore(), "加载中再次 LoadMore 应为 no-op")
	api.expectNoCall(t)
	assert.Equal(t, 2, o.State().Page)

	c.respond(page(11, 10, 100), nil)
	waitIdle(t, o)
}

func TestLoadMore_NoopWhenQueryBlank(t *testing.T) {
	api := newFakeAPI()
	o, _ := newTestOrchestrator(t, api)

	assert.False(t, o.LoadMore(), "初始状态（空 query）下应为 no-op")

	loadFirstPage(t, o, api, "batman", page(1, 10, 100))
	o.SetQuery("")
	assert.False(t, o.LoadMore())
	api.expectNoCall(t)
}

func TestLoadMore_NoopBeforeFirstPageLands(t *testing.T) {
	api := newFakeAPI()
	o, _ := newTestOrchestrator(t, api)

	loadFirstPage(t, o, api, "batman", page(1, 10, 100))
	require.True(t, o.State().HasMore)

	// 新 query 的防抖尚未触发：旧结果仍在、has-more 仍为 true，但不能翻页。
	o.SetQuery("superman")
	assert.True(t, o.State().HasMore)
	assert.False(t, o.LoadMore(), "防抖未触发时不能翻页")

	// 第 1 页在途：同样不能翻页。
	require.True(t, o.Flush())
	c := api.next(t)
	assert.False(t, o.LoadMore(), "第 1 页在途时不能翻页")
	api.expectNoCall(t)

	c.respond(page(1, 10, 50), nil)
	waitIdle(t, o)
	assert.True(t, o.LoadMore(), "第 1 页落地后可以翻页")
	api.next(t).respond(page(11, 10, 50), nil)
	waitIdle(t, o)
}

func TestSupersededResponse_NeverObservable(t *testing.T) {
	api := newFakeAPI()
	o, m := newTestOrchestrator(t, api)

	o.SetQuery("alpha")
	o.Flush()
	a := api.next(t)

	o.SetQuery("bravo")
	o.Flush()
	b := api.next(t)

	select {
	case <-a.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("发起 B 时应取消 A")
	}

	// A 在 B 之前晚到：不得把 loading 清掉。
	a.respond(page(1, 10, 100), nil)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.StaleResponsesTotal.WithLabelValues(metrics.KindSearch)) == 1
	}, time.Second, 5*time.Millisecond)
	st := o.State()
	assert.True(t, st.Loading, "过期响应不应复位 loading")
	assert.Nil(t, st.Results)
	assert.Empty(t, st.Error)

	bravo := page(900, 2, 2)
	b.respond(bravo, nil)
	st = waitIdle(t, o)
	require.NotNil(t, st.Results)
	assert.Equal(t, bravo.Records, st.Results.Records)
	assert.Equal(t, "bravo", st.Query)
}

func TestSupersededError_NeverObservable(t *testing.T) {
	api := newFakeAPI()
	o, m := newTestOrchestrator(t, api)

	o.SetQuery("alpha")
	o.Flush()
	a := api.next(t)
	o.SetQuery("bravo")
	o.Flush()
	b := api.next(t)

	bravo := page(1, 3, 3)
	b.respond(bravo, nil)
	waitIdle(t, o)

	// B 已落地之后 A 才以错误返回。
	a.respond(domain.SearchResultSet{}, &omdb.HTTPStatusError{StatusCode: http.StatusUnauthorized})
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.StaleResponsesTotal.WithLabelValues(metrics.KindSearch)) == 1
	}, time.Second, 5*time.Millisecond)

	st := o.State()
	assert.Empty(t, st.Error)
	require.NotNil(t, st.Results)
	assert.Equal(t, bravo.Records, st.Results.Records)
}

func TestBodyFailure_Messages(t *testing.T) {
	cases := []struct {
		remote string
		want   string
	}{
		{omdb.ErrRequestLimit, MsgRequestLimit},
		{"Movie not found!", MsgNoResults},
		{"Too many results.", MsgNoResults},
		{"", MsgNoResults},
	}
	for _, tc := range cases {
		t.Run(tc.remote, func(t *testing.T) {
			api := newFakeAPI()
			o, _ := newTestOrchestrator(t, api)

			loadFirstPage(t, o, api, "batman", page(1, 10, 100))
			require.True(t, o.LoadMore())
			api.next(t).respond(domain.SearchResultSet{OK: false, Error: tc.remote}, nil)

			st := waitIdle(t, o)
			assert.Equal(t, tc.want, st.Error)
			assert.NotEqual(t, tc.remote, st.Error, "不应透传远端原文")
			assert.Nil(t, st.Results)
			assert.False(t, st.HasMore)
		})
	}
}

func TestTransportFailure_Messages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"401", &omdb.HTTPStatusError{StatusCode: http.StatusUnauthorized}, MsgInvalidAPIKey},
		{"429", &omdb.HTTPStatusError{StatusCode: http.StatusTooManyRequests}, MsgTooManyRequests},
		{"500", &omdb.HTTPStatusError{StatusCode: http.StatusInternalServerError}, MsgSearchFailed},
		{"network", errors.New("dial tcp: connection refused"), MsgSearchFailed},
		{"wrapped401", fmt.Errorf("wrap: %w", &omdb.HTTPStatusError{StatusCode: http.StatusUnauthorized}), MsgInvalidAPIKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI()
			o, _ := newTestOrchestrator(t, api)

			loadFirstPage(t, o, api, "batman", page(1, 10, 100))
			require.True(t, o.LoadMore())
			api.next(t).respond(domain.SearchResultSet{}, tc.err)

			st := waitIdle(t, o)
			assert.Equal(t, tc.want, st.Error)
			assert.Nil(t, st.Results, "失败时必须清空结果")
			assert.False(t, st.HasMore, "失败时必须复位 has-more")
		})
	}
}

func TestNewSearchClearsPreviousError(t *testing.T) {
	api := newFakeAPI()
	o, _ := newTestOrchestrator(t, api)

	o.SetQuery("x")
	o.Flush()
	api.next(t).respond(domain.SearchResultSet{}, errors.New("boom"))
	require.Equal(t, MsgSearchFailed, waitIdle(t, o).Error)

	o.SetQuery("xy")
	o.Flush()
	c := api.next(t)
	st := o.State()
	assert.True(t, st.Loading)
	assert.Empty(t, st.Error, "发起新请求时应清空旧错误")
	c.respond(page(1, 1, 1), nil)
	waitIdle(t, o)
}

func TestClose_CancelsInflightAndIgnoresLateResult(t *testing.T) {
	api := newFakeAPI()
	o, _ := newTestOrchestrator(t, api)

	o.SetQuery("batman")
	o.Flush()
	c := api.next(t)

	o.Close()
	select {
	case <-c.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Close 应取消在途请求")
	}
	c.respond(domain.SearchResultSet{}, context.Canceled)
	o.Wait()

	st := o.State()
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error, "取消不应表现为错误")
	assert.Nil(t, st.Results)

	o.SetQuery("joker")
	assert.False(t, o.Flush())
	assert.False(t, o.LoadMore())
	api.expectNoCall(t)
}

func TestListener_ReceivesSnapshots(t *testing.T) {
	api := newFakeAPI()

	var mu sync.Mutex
	var states []State
	o, _ := newTestOrchestrator(t, api, WithListener(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}))

	loadFirstPage(t, o, api, "batman", page(1, 10, 100))

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(states), 3)
	assert.Equal(t, "batman", states[0].Query)
	assert.False(t, states[0].Loading)
	assert.True(t, states[1].Loading)
	last := states[len(states)-1]
	assert.False(t, last.Loading)
	require.NotNil(t, last.Results)
	assert.Len(t, last.Results.Records, 10)

	// 快照与内部状态互不影响。
	last.Results.Records[0].Title = "mutated"
	assert.NotEqual(t, "mutated", o.State().Results.Records[0].Title)
}

// 端到端：真实 omdb.Client + httptest，验证 401 与 body 内容无关。
func TestHTTP401_CredentialsMessageRegardlessOfBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"Response":"False","Error":"Request limit reached!"}`)
	}))
	t.Cleanup(srv.Close)

	client := omdb.NewClient(srv.URL, "bad-key", srv.Client(), nil, nil)
	o, _ := newTestOrchestrator(t, client)

	o.SetQuery("batman")
	require.True(t, o.Flush())
	o.Wait()

	st := o.State()
	assert.Equal(t, MsgInvalidAPIKey, st.Error)
	assert.Nil(t, st.Results)
	assert.False(t, st.HasMore)
	assert.False(t, st.Loading)
}

// 端到端：body 层 "Request limit reached!" → 额度文案，而不是远端原文。
func TestBodyRequestLimit_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Response":"False","Error":"Request limit reached!"}`)
	}))
	t.Cleanup(srv.Close)

	client := omdb.NewClient(srv.URL, "k", srv.Client(), nil, nil)
	o, _ := newTestOrchestrator(t, client)

	o.SetQuery("batman")
	require.True(t, o.Flush())
	o.Wait()

	st := o.State()
	assert.Equal(t, MsgRequestLimit, st.Error)
	assert.NotEqual(t, omdb.ErrRequestLimit, st.Error)
}

func TestFlushWait_ZeroDebounceAlwaysSeesFirstPage(t *testing.T) {
	api := instantAPI{rs: page(1, 10, 10)}
	for i := 0; i < 500; i++ {
		o := New(api, WithDebounce(0))
		o.SetQuery("batman")
		o.Flush()
		o.Wait()
		st := o.State()
		o.Close()

		require.NotNil(t, st.Results, "第 %d 次：Flush+Wait 之后第 1 页必须已落地", i)
		require.Len(t, st.Results.Records, 10)
		require.False(t, st.Loading)
	}
}
