package cache

import (
	"errors"
)

var (
	// ErrCacheMiss indica che la chiave non è presente o è scaduta
	ErrCacheMiss = errors.New("cache miss")
)

// Stats contiene statistiche sul cache
type Stats struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
	Evicted int64
}

// HitRate calcola il tasso di hit del cache
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
