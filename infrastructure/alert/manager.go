package alert

import (
	"fmt"
	"sync"
	"time"
)

// Level 告警级别
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// Alert 告警信息。Message 应保持稳定，变化的数值放进 Fields，否则限流无效
type Alert struct {
	Level     Level
	Message   string
	Timestamp time.Time
	Fields    map[string]interface{}
}

// Channel 告警通道接口
type Channel interface {
	Send(alert Alert) error
	Name() string
}

// Throttler 告警限流器，同一 key 在 interval 内只放行一次
type Throttler struct {
	lastSent map[string]time.Time
	interval time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewThrottler 创建限流器；interval<=0 时不限流
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		lastSent: make(map[string]time.Time),
		interval: interval,
		now:      time.Now,
	}
}

// Allow 检查是否允许发送
func (t *Throttler) Allow(key string) bool {
	if t.interval <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.lastSent[key]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.lastSent[key] = now
	return true
}

// Clear 清空所有限流记录
func (t *Throttler) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSent = make(map[string]time.Time)
}

// Manager 告警管理器
type Manager struct {
	channels []Channel
	throttle *Throttler
	mu       sync.RWMutex

	sent       int64
	suppressed int64
}

// NewManager 创建告警管理器
func NewManager(channels []Channel, throttleInterval time.Duration) *Manager {
	return &Manager{
		channels: channels,
		throttle: NewThrottler(throttleInterval),
	}
}

// Send 发送告警到所有通道。被限流的告警静默丢弃；全部通道失败时返回错误
func (m *Manager) Send(a Alert) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	m.mu.Lock()
	if !m.throttle.Allow(string(a.Level) + ":" + a.Message) {
		m.suppressed++
		m.mu.Unlock()
		return nil
	}
	m.sent++
	channels := append([]Channel(nil), m.channels...)
	m.mu.Unlock()

	var lastErr error
	delivered := 0
	for _, ch := range channels {
		if err := ch.Send(a); err != nil {
			lastErr = fmt.Errorf("channel %s failed: %w", ch.Name(), err)
			continue
		}
		delivered++
	}
	if delivered == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

// SendAll 依次发送，返回第一个错误
func (m *Manager) SendAll(alerts []Alert) error {
	var first error
	for _, a := range alerts {
		if err := m.Send(a); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// AddChannel 添加告警通道
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

// Channels 返回所有通道名
func (m *Manager) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Counts 返回已发送和被限流的告警数
func (m *Manager) Counts() (sent, suppressed int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sent, m.suppressed
}

// ResetThrottle 重置限流器
func (m *Manager) ResetThrottle() {
	m.throttle.Clear()
}
