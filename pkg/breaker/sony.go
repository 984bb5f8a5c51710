package breaker

import (
	"sync"

	"github.com/sony/gobreaker/v2"
)

// SonyBreaker sony/gobreaker 适配，作为窗口实现之外的可选后端。
// gobreaker 的 two-step 接口按调用返回回执，这里用 FIFO 队列把
// Success/Failure 配对回最早放行的调用；并发下配对顺序可能与真实
// 调用顺序不同，但总量统计一致。
type SonyBreaker struct {
	cb      *gobreaker.TwoStepCircuitBreaker[any]
	mu      sync.Mutex
	pending []func(success bool)
}

func NewSonyBreaker(name string, cfg *Config) *SonyBreaker {
	c := cfg.Normalize()
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // HalfOpen 只放行一个探测
		Timeout:     c.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(c.MinSamples) {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
		},
	}
	return &SonyBreaker{
		cb: gobreaker.NewTwoStepCircuitBreaker[any](settings),
	}
}

func (s *SonyBreaker) Allow() bool {
	done, err := s.cb.Allow()
	if err != nil {
		return false
	}
	s.mu.Lock()
	s.pending = append(s.pending, done)
	s.mu.Unlock()
	return true
}

func (s *SonyBreaker) Success() {
	if done := s.pop(); done != nil {
		done(true)
	}
}

func (s *SonyBreaker) Failure() {
	if done := s.pop(); done != nil {
		done(false)
	}
}

func (s *SonyBreaker) State() State {
	switch s.cb.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

func (s *SonyBreaker) pop() func(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	done := s.pending[0]
	s.pending = s.pending[1:]
	return done
}
