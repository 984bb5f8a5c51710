package breaker

import (
	"sync"
	"time"
)

// WindowBreaker 默认熔断器实现：固定容量环形窗口记录最近 N 次调用结果。
//
// Closed: 失败率 = 窗口内失败数/样本数，样本数达到 MinSamples 且失败率
// 达到 FailureRatio 时进入 Open。
// Open: 冷却 Cooldown 后下一次 Allow 作为探测请求放行，进入 HalfOpen。
// HalfOpen: 只允许一个探测在途，其余请求短路；探测成功回到 Closed 并清空
// 窗口，探测失败回到 Open、重置 openedAt 并清空窗口（实现约定：两个方向
// 都清空，避免旧样本影响下一轮判断）。
type WindowBreaker struct {
	mu       sync.Mutex
	cfg      *Config
	state    State
	ring     []bool // true 表示失败
	idx      int
	count    int
	failures int
	openedAt time.Time
	probing  bool             // HalfOpen 探测在途标记
	now      func() time.Time // 测试时可替换
}

func NewWindowBreaker(cfg *Config) *WindowBreaker {
	c := cfg.Normalize()
	return &WindowBreaker{
		cfg:   c,
		state: StateClosed,
		ring:  make([]bool, c.Window),
		now:   time.Now,
	}
}

func (b *WindowBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
			// 冷却结束，放行一个探测
			b.state = StateHalfOpen
			b.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if !b.probing {
			b.probing = true
			return true
		}
		// 探测在途，其余请求短路而不是排队
		return false
	}
	return false
}

func (b *WindowBreaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		// 探测成功，恢复 Closed
		b.state = StateClosed
		b.probing = false
		b.reset()
		return
	}
	b.record(false)
}

func (b *WindowBreaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		// 探测失败，重新熔断并重置冷却
		b.state = StateOpen
		b.openedAt = b.now()
		b.probing = false
		b.reset()
		return
	}
	b.record(true)
	if b.state == StateClosed && b.count >= b.cfg.MinSamples {
		if float64(b.failures)/float64(b.count) >= b.cfg.FailureRatio {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	}
}

func (b *WindowBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts 返回当前窗口样本数和失败数
func (b *WindowBreaker) Counts() (samples, failures int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count, b.failures
}

// record 写入一次调用结果，窗口满后覆盖最旧的记录。调用方需持有锁。
func (b *WindowBreaker) record(failed bool) {
	if b.count == len(b.ring) {
		if b.ring[b.idx] {
			b.failures--
		}
	} else {
		b.count++
	}
	b.ring[b.idx] = failed
	if failed {
		b.failures++
	}
	b.idx = (b.idx + 1) % len(b.ring)
}

func (b *WindowBreaker) reset() {
	for i := range b.ring {
		b.ring[i] = false
	}
	b.idx = 0
	b.count = 0
	b.failures = 0
}
