// Package search 负责“边输入边搜索”的请求编排：防抖、取消/取代、分页累积，
// 并把 loading / error / has-more 状态暴露给展示层。
package search

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/cinesearch/internal/debounce"
	"github.com/John-Robertt/cinesearch/internal/domain"
	"github.com/John-Robertt/cinesearch/internal/metrics"
)

// DefaultDebounce 是输入防抖的默认窗口。
const DefaultDebounce = 300 * time.Millisecond

// API 是编排层对远端搜索的唯一依赖（*omdb.Client 满足该接口）。
type API interface {
	Search(ctx context.Context, query string, page int) (domain.SearchResultSet, error)
}

// State 是编排层状态的只读快照。
type State struct {
	Query   string
	Results *domain.SearchResultSet // nil 表示当前没有结果
	Loading bool
	Error   string
	Page    int // 最近一次请求的页码
	HasMore bool
}

// Listener 在每次状态变化后收到快照。
// 调用发生在发起变化的 goroutine 中且不持锁：实现必须快速返回并且并发安全。
type Listener func(State)

type Option func(*Orchestrator)

// WithDebounce 设置防抖窗口（0 表示下一个调度点立即执行）。
func WithDebounce(d time.Duration) Option {
	return func(o *Orchestrator) { o.debounceDelay = d }
}

// WithAfterFunc 替换防抖计时器工厂（测试用）。
func WithAfterFunc(f debounce.AfterFunc) Option {
	return func(o *Orchestrator) { o.afterFunc = f }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithListener(l Listener) Option {
	return func(o *Orchestrator) { o.listener = l }
}

// token 标识一次具体的搜索请求。
// 过期判定只看指针身份（o.current == tok），不看布尔标志：
// 多轮“取消-重发”之后，旧请求的返回也能被准确识别并丢弃。
type token struct {
	id     ulid.ULID // 仅用于日志关联
	query  string
	page   int
	cancel context.CancelFunc
}

// Orchestrator 独占 query / 结果集 / 分页状态。
//
// 不变量：
// - 同一时刻最多一个搜索请求在途；发起新请求前必定取消旧请求
// - 被取代请求的结果/错误永远不可见（await 之后的每次状态修改都先校验 token）
// - 每个失败分支都同时复位 has-more 与 loading，不留半更新状态
type Orchestrator struct {
	api      API
	deb      *debounce.Debouncer
	log      zerolog.Logger
	metrics  *metrics.Metrics
	listener Listener

	debounceDelay time.Duration
	afterFunc     debounce.AfterFunc

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	query   string
	results *domain.SearchResultSet
	loading bool
	errMsg  string
	page    int
	hasMore bool

	// initialPending 为 true 表示当前 query 的第 1 页尚未落地
	// （防抖未触发，或第 1 页请求仍在途）；此时 LoadMore 必须是 no-op。
	initialPending bool

	current *token
}

func New(api API, opts ...Option) *Orchestrator {
	ctx, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		api:           api,
		log:           zerolog.Nop(),
		debounceDelay: DefaultDebounce,
		ctx:           ctx,
		stop:          stop,
		page:          1,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.deb = debounce.NewWithTimer(o.debounceDelay, o.afterFunc)
	return o
}

// SetQuery 立即替换 query。
// 空白 query：取消一切在途工作并清空结果，不发请求；否则安排一次防抖搜索。
func (o *Orchestrator) SetQuery(text string) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.query = text

	if domain.IsBlankQuery(text) {
		o.deb.Stop()
		o.cancelCurrentLocked()
		o.results = nil
		o.page = 1
		o.hasMore = false
		o.loading = false
		o.errMsg = ""
		o.initialPending = false
	} else {
		o.initialPending = true
		o.deb.Trigger(o.fireDebounced)
	}

	st := o.snapshotLocked()
	o.mu.Unlock()
	o.notify(st)
}

// LoadMore 请求下一页并追加到现有结果。返回是否真的发起了请求。
//
// 以下任一条件成立时为 no-op：正在加载、没有更多、query 为空白、
// 当前 query 的第 1 页尚未落地。
func (o *Orchestrator) LoadMore() bool {
	o.mu.Lock()
	if o.closed || o.loading || !o.hasMore || domain.IsBlankQuery(o.query) || o.initialPending {
		o.mu.Unlock()
		return false
	}
	o.page++
	o.searchLocked(o.query, o.page)
	st := o.snapshotLocked()
	o.mu.Unlock()
	o.notify(st)
	return true
}

// Flush 立即执行尚未到期的防抖搜索（非交互场景使用）。
// 防抖已自行到期时等待它发起请求后再返回，之后的 Wait 一定覆盖这次请求。
func (o *Orchestrator) Flush() bool { return o.deb.Flush() }

// Wait 阻塞直到没有请求 goroutine 在运行。
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Close 取消防抖与在途请求；之后的 SetQuery/LoadMore 都是 no-op。
// Close 不等待请求 goroutine 退出（需要时再调用 Wait）。
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.deb.Stop()
	o.cancelCurrentLocked()
	o.loading = false
	o.mu.Unlock()
	o.stop()
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// fireDebounced 是防抖到期后的入口：每个新 query 都从第 1 页重新开始。
func (o *Orchestrator) fireDebounced() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.page = 1
	o.hasMore = false
	o.searchLocked(o.query, 1)
	st := o.snapshotLocked()
	o.mu.Unlock()
	o.notify(st)
}

// searchLocked 取代旧请求并发起新请求。调用方持有 o.mu。
func (o *Orchestrator) searchLocked(query string, page int) {
	if domain.IsBlankQuery(query) {
		o.cancelCurrentLocked()
		o.results = nil
		o.hasMore = false
		o.loading = false
		o.initialPending = false
		return
	}

	if o.current != nil {
		o.current.cancel()
	}
	ctx, cancel := context.WithCancel(o.ctx)
	tok := &token{id: ulid.Make(), query: query, page: page, cancel: cancel}
	o.current = tok
	o.loading = true
	o.errMsg = ""

	o.log.Debug().Str("request_id", tok.id.String()).Str("query", query).Int("page", page).Msg("发起搜索")

	o.wg.Add(1)
	go o.run(ctx, tok)
}

func (o *Orchestrator) run(ctx context.Context, tok *token) {
	defer o.wg.Done()

	rs, err := o.api.Search(ctx, tok.query, tok.page)
	canceled := err != nil && isCanceled(ctx, err)
	tok.cancel()

	o.mu.Lock()
	if o.current != tok {
		o.mu.Unlock()
		o.metrics.Stale(metrics.KindSearch)
		o.log.Debug().Str("request_id", tok.id.String()).Msg("丢弃已被取代的搜索结果")
		return
	}
	o.current = nil
	o.loading = false
	if tok.page == 1 {
		o.initialPending = false
	}

	switch {
	case canceled:
		// 取消不是错误：结果状态保持不变。
	case err != nil:
		o.errMsg = transportMessage(err)
		o.results = nil
		o.hasMore = false
		o.log.Warn().Str("request_id", tok.id.String()).Str("query", tok.query).Int("page", tok.page).Err(err).Msg("搜索失败")
	case !rs.OK:
		o.errMsg = bodyMessage(rs.Error)
		o.results = nil
		o.hasMore = false
		o.log.Info().Str("request_id", tok.id.String()).Str("query", tok.query).Str("remote_error", rs.Error).Msg("远端未返回结果")
	default:
		o.applyPageLocked(tok.page, rs)
	}

	closed := o.closed
	st := o.snapshotLocked()
	o.mu.Unlock()
	if !closed {
		o.notify(st)
	}
}

// applyPageLocked 第 1 页整体替换；后续页按序追加并采用新响应的 Total。
func (o *Orchestrator) applyPageLocked(page int, rs domain.SearchResultSet) {
	pageLen := len(rs.Records)
	if page == 1 || o.results == nil {
		next := rs
		next.Records = append([]domain.SummaryRecord(nil), rs.Records...)
		o.results = &next
	} else {
		merged := make([]domain.SummaryRecord, 0, len(o.results.Records)+pageLen)
		merged = append(merged, o.results.Records...)
		merged = append(merged, rs.Records...)
		o.results = &domain.SearchResultSet{
			Records: merged,
			Total:   rs.Total,
			OK:      true,
		}
	}
	o.hasMore = domain.HasMore(pageLen, rs.Total, page)
}

func (o *Orchestrator) cancelCurrentLocked() {
	if o.current != nil {
		o.current.cancel()
		o.current = nil
	}
}

func (o *Orchestrator) snapshotLocked() State {
	return State{
		Query:   o.query,
		Results: o.results.Clone(),
		Loading: o.loading,
		Error:   o.errMsg,
		Page:    o.page,
		HasMore: o.hasMore,
	}
}

func (o *Orchestrator) notify(st State) {
	if o.listener != nil {
		o.listener(st)
	}
}
