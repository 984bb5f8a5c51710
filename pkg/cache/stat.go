package cache

import "sync/atomic"

// Stat 命中率统计
type Stat struct {
	hits   uint64
	misses uint64
}

type StatSnapshot struct {
	Hits   uint64
	Misses uint64
}

func (s *Stat) hit() {
	atomic.AddUint64(&s.hits, 1)
}

func (s *Stat) miss() {
	atomic.AddUint64(&s.misses, 1)
}

func (s *Stat) snapshot() StatSnapshot {
	return StatSnapshot{
		Hits:   atomic.LoadUint64(&s.hits),
		Misses: atomic.LoadUint64(&s.misses),
	}
}

// Ratio 命中率，无访问时返回 0
func (s StatSnapshot) Ratio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
