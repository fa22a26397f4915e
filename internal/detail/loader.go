package detail

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/John-Robertt/cinesearch/internal/domain"
)

// API 是详情请求的最小依赖（*omdb.Client 与 *Loader 都满足）。
type API interface {
	Detail(ctx context.Context, id domain.IMDbID) (domain.DetailRecord, error)
}

// Loader 合并同一 ID 的并发详情请求：多个 Fetcher 同时请求同一条目时只发一次网络请求。
//
// 共享请求使用 context.WithoutCancel 运行：某个调用方取消只影响它自己的等待，
// 不会让其它仍在等待的调用方失败。请求本身的上限由 HTTP 客户端超时约束。
type Loader struct {
	api   API
	log   zerolog.Logger
	group singleflight.Group
}

func NewLoader(api API, logger *zerolog.Logger) *Loader {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Loader{api: api, log: l}
}

func (l *Loader) Detail(ctx context.Context, id domain.IMDbID) (domain.DetailRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.DetailRecord{}, err
	}

	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(string(id), func() (any, error) {
		return l.api.Detail(shared, id)
	})

	select {
	case <-ctx.Done():
		return domain.DetailRecord{}, ctx.Err()
	case r := <-ch:
		if r.Shared {
			l.log.Debug().Str("imdb_id", string(id)).Msg("复用进行中的详情请求")
		}
		if r.Err != nil {
			return domain.DetailRecord{}, r.Err
		}
		rec, _ := r.Val.(domain.DetailRecord)
		return rec, nil
	}
}

// Forget 让下一次同 ID 请求不再复用当前进行中的调用。
func (l *Loader) Forget(id domain.IMDbID) {
	l.group.Forget(string(id))
}
