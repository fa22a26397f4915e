// Package debounce 提供单槽滑动窗口的防抖器：每次触发都会重置计时，
// 只有完整经过 delay 且未被取代的那一次才会执行。
package debounce

import (
	"sync"
	"time"
)

// Timer 是 *time.Timer 的最小子集，便于测试替换。
type Timer interface {
	Stop() bool
}

// AfterFunc 与 time.AfterFunc 同签名（返回值收窄为 Timer）。
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Debouncer 只持有一个待执行的计时器。
//
// 约束：
// - Trigger 会停止上一个计时器并重新计时；只执行最后一次传入的 fn
// - Stop 与计时器到期可能竞争：用 gen 代号保证被取代的计时器到期后什么也不做
// - fn 在锁外执行，fn 内部可以再次调用 Trigger，但不能调用 Flush
// - 计时器已到期、fn 仍在执行时，Flush 等它执行完再返回
type Debouncer struct {
	delay time.Duration
	after AfterFunc

	mu     sync.Mutex
	idle   *sync.Cond
	gen    uint64
	timer  Timer
	fn     func()
	firing int
}

// NewWithTimer 允许注入计时器工厂（after 为 nil 时使用 time.AfterFunc）。
func NewWithTimer(delay time.Duration, after AfterFunc) *Debouncer {
	if delay < 0 {
		delay = 0
	}
	if after == nil {
		after = realAfterFunc
	}
	d := &Debouncer{delay: delay, after: after}
	d.idle = sync.NewCond(&d.mu)
	return d
}

func (d *Debouncer) Delay() time.Duration { return d.delay }

// Trigger 安排 fn 在 delay 之后执行，并取消之前尚未执行的安排。
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.fn = fn
	d.timer = d.after(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.fn == nil {
		d.mu.Unlock()
		return
	}
	fn := d.fn
	d.fn = nil
	d.timer = nil
	d.firing++
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.firing--
		if d.firing == 0 {
			d.idle.Broadcast()
		}
		d.mu.Unlock()
	}()
	fn()
}

// Flush 立即执行待执行的 fn（如果有），返回是否由本次调用执行。
// 没有待执行项但计时器回调正在执行时，Flush 阻塞到回调结束，
// 因此 Flush 返回后 fn 的副作用一定已经可见。
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	fn := d.takeLocked()
	if fn == nil {
		for d.firing > 0 {
			d.idle.Wait()
		}
		d.mu.Unlock()
		return false
	}
	d.mu.Unlock()

	fn()
	return true
}

// Stop 丢弃待执行的 fn，返回之前是否存在待执行项。
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.takeLocked() != nil
}

// Pending 报告是否存在尚未执行的 fn。
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fn != nil
}

func (d *Debouncer) takeLocked() func() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	fn := d.fn
	d.fn = nil
	return fn
}
