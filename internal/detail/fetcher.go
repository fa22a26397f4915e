// Package detail 负责单个条目的详情加载：先查结果缓存，未命中再发请求；
// 每个 Fetcher 只保留一个在途请求，新请求取代旧请求。
package detail

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/cinesearch/internal/domain"
	"github.com/John-Robertt/cinesearch/internal/metrics"
)

// Cache 是 Fetcher 对结果缓存的只读依赖（*cache.Store 满足）。
type Cache interface {
	Get(id domain.IMDbID) (domain.DetailRecord, bool)
}

// State 是 Fetcher 状态的只读快照。
type State struct {
	Key     domain.IMDbID
	Record  *domain.DetailRecord // nil 表示尚无记录
	Loading bool
	Error   string
}

type Listener func(State)

type Option func(*Fetcher)

func WithCache(c Cache) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithOnLoaded 在网络请求成功后回调（缓存命中不回调）。通常用来写回共享缓存。
func WithOnLoaded(fn func(domain.IMDbID, domain.DetailRecord)) Option {
	return func(f *Fetcher) { f.onLoaded = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

func WithListener(l Listener) Option {
	return func(f *Fetcher) { f.listener = l }
}

type token struct {
	id     ulid.ULID
	key    domain.IMDbID
	cancel context.CancelFunc
}

// Fetcher 对应一个展示中的条目。不同 Fetcher 之间互不取消。
type Fetcher struct {
	api      API
	cache    Cache
	onLoaded func(domain.IMDbID, domain.DetailRecord)
	log      zerolog.Logger
	metrics  *metrics.Metrics
	listener Listener

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	key     domain.IMDbID
	record  *domain.DetailRecord
	loading bool
	errMsg  string
	current *token
}

func New(api API, opts ...Option) *Fetcher {
	ctx, stop := context.WithCancel(context.Background())
	f := &Fetcher{
		api:  api,
		log:  zerolog.Nop(),
		ctx:  ctx,
		stop: stop,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch 缓存命中时同步返回 (record, true)，不发请求；
// 否则取代本 Fetcher 的在途请求并发起新请求，返回 false，结果通过 State/Listener 观察。
// 空白 key 等价于 Invalidate("")。
func (f *Fetcher) Fetch(key domain.IMDbID) (domain.DetailRecord, bool) {
	key = domain.IMDbID(strings.TrimSpace(string(key)))
	if key == "" {
		f.Invalidate("")
		return domain.DetailRecord{}, false
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return domain.DetailRecord{}, false
	}

	if f.cache != nil {
		if rec, ok := f.cache.Get(key); ok {
			f.metrics.CacheLookup(true)
			f.cancelCurrentLocked()
			f.key = key
			f.record = &rec
			f.loading = false
			f.errMsg = ""
			st := f.snapshotLocked()
			f.mu.Unlock()
			f.notify(st)
			return rec, true
		}
		f.metrics.CacheLookup(false)
	}

	f.cancelCurrentLocked()
	ctx, cancel := context.WithCancel(f.ctx)
	tok := &token{id: ulid.Make(), key: key, cancel: cancel}
	f.current = tok
	if f.key != key {
		f.record = nil
	}
	f.key = key
	f.loading = true
	f.errMsg = ""

	f.log.Debug().Str("request_id", tok.id.String()).Str("imdb_id", string(key)).Msg("发起详情请求")

	f.wg.Add(1)
	go f.run(ctx, tok)

	st := f.snapshotLocked()
	f.mu.Unlock()
	f.notify(st)
	return domain.DetailRecord{}, false
}

// forgetter 由 *Loader 实现。
type forgetter interface {
	Forget(id domain.IMDbID)
}

// Invalidate 在 key 为空或等于当前 key 时取消在途请求并清空状态；返回是否生效。
func (f *Fetcher) Invalidate(key domain.IMDbID) bool {
	key = domain.IMDbID(strings.TrimSpace(string(key)))

	f.mu.Lock()
	if f.closed || (key != "" && key != f.key) {
		f.mu.Unlock()
		return false
	}
	forget := f.key
	f.cancelCurrentLocked()
	f.key = ""
	f.record = nil
	f.loading = false
	f.errMsg = ""
	st := f.snapshotLocked()
	f.mu.Unlock()

	// 共享请求的结果已被作废：下一次 Fetch 必须重新请求而不是加入它。
	if fg, ok := f.api.(forgetter); ok && forget != "" {
		fg.Forget(forget)
	}
	f.notify(st)
	return true
}

func (f *Fetcher) Wait() { f.wg.Wait() }

// Close 取消在途请求；之后的 Fetch/Invalidate 都是 no-op。
func (f *Fetcher) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.cancelCurrentLocked()
	f.loading = false
	f.mu.Unlock()
	f.stop()
}

func (f *Fetcher) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Fetcher) run(ctx context.Context, tok *token) {
	defer f.wg.Done()

	rec, err := f.api.Detail(ctx, tok.key)
	canceled := err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil)
	tok.cancel()

	f.mu.Lock()
	if f.current != tok {
		f.mu.Unlock()
		f.metrics.Stale(metrics.KindDetail)
		f.log.Debug().Str("request_id", tok.id.String()).Msg("丢弃已被取代的详情结果")
		return
	}
	f.current = nil
	f.loading = false

	loaded := false
	switch {
	case canceled:
	case err != nil:
		f.errMsg = MsgFailed
		f.log.Warn().Str("request_id", tok.id.String()).Str("imdb_id", string(tok.key)).Err(err).Msg("详情加载失败")
	case !rec.OK:
		f.errMsg = bodyMessage(rec.Error)
		f.log.Info().Str("request_id", tok.id.String()).Str("imdb_id", string(tok.key)).Str("remote_error", rec.Error).Msg("远端未返回详情")
	default:
		r := rec
		f.record = &r
		loaded = true
	}

	closed := f.closed
	st := f.snapshotLocked()
	f.mu.Unlock()

	if loaded && f.onLoaded != nil {
		f.onLoaded(tok.key, rec)
	}
	if !closed {
		f.notify(st)
	}
}

func (f *Fetcher) cancelCurrentLocked() {
	if f.current != nil {
		f.current.cancel()
		f.current = nil
	}
}

func (f *Fetcher) snapshotLocked() State {
	st := State{Key: f.key, Loading: f.loading, Error: f.errMsg}
	if f.record != nil {
		r := f.record.Clone()
		st.Record = &r
	}
	return st
}

func (f *Fetcher) notify(st State) {
	if f.listener != nil {
		f.listener(st)
	}
}
