// Package clock 提供可注入的时钟能力
//
// 预留过期时间的计算和后台回收的时间比较都依赖"现在几点"，
// 直接调用time.Now()会让超时语义无法测试，因此抽象为接口注入
package clock

import (
	"sync"
	"time"
)

// Clock 时钟能力
type Clock interface {
	Now() time.Time
}

// Real 系统时钟
type Real struct{}

func (Real) Now() time.Time {
	return time.Now()
}

// Manual 手动时钟（测试用）
// 教学要点：Advance推动时间前进，让"30分钟后超时"秒级可测
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual 创建手动时钟
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance 推动时间前进
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
