// Package clock 把存储的比赛时钟 checkpoint 换算成当前应显示的比赛时间, 本包不保存状态
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock 时间来源
type Clock interface {
	Now() time.Time
}

// System 系统时钟
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Manual 手动推进的时钟, 并发安全
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual 创建停在 start 的手动时钟
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance 前进 d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// ElapsedNow 计算 now 时刻的比赛秒数.
// 非进行中或 runningSince 为空时直接返回 checkpoint; 计时中加上 runningSince 之后的整秒数.
// runningSince 晚于 now (时钟偏差) 时不累加.
func ElapsedNow(checkpoint int, runningSince *time.Time, live bool, now time.Time) int {
	if checkpoint < 0 {
		checkpoint = 0
	}
	if !live || runningSince == nil {
		return checkpoint
	}
	delta := now.Sub(*runningSince)
	if delta <= 0 {
		return checkpoint
	}
	return checkpoint + int(delta/time.Second)
}

// Minute 比赛分钟 (向下取整)
func Minute(seconds int) int {
	if seconds < 0 {
		return 0
	}
	return seconds / 60
}

// Format 格式化为 "M:SS", 分钟数不封顶
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatMinutes 只显示分钟, 例如 "45'". 截断不四舍五入, 59 秒仍是 "0'"
func FormatMinutes(seconds int) string {
	return fmt.Sprintf("%d'", Minute(seconds))
}
