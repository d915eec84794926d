package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlideWindow 使用鎖實現, 高QPS請採用 redis bucket
type SlideWindow struct {
	LimiterConfig
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

func NewSlideWindow(config LimiterConfig) *SlideWindow {
	return &SlideWindow{
		LimiterConfig: config,
		windows:       make(map[string][]time.Time),
		now:           time.Now,
	}
}

func (w *SlideWindow) Allow(ctx context.Context, key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	window := w.windows[key]
	validStart := len(window)
	for i, t := range window {
		if now.Sub(t) < w.Window {
			validStart = i
			break
		}
	}

	window = window[validStart:]
	if len(window) >= w.Capacity {
		w.windows[key] = window
		return false
	}
	w.windows[key] = append(window, now)
	return true
}
