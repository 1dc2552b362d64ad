package alert

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"trade-recon-go/infrastructure/logger"
)

// LogChannel 把告警写入结构化日志
type LogChannel struct {
	log  *logger.Logger
	name string
}

// NewLogChannel 创建日志告警通道
func NewLogChannel(name string, log *logger.Logger) *LogChannel {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogChannel{log: log, name: name}
}

// Send 按告警级别映射日志级别
func (c *LogChannel) Send(a Alert) error {
	fields := make([]zap.Field, 0, len(a.Fields)+3)
	fields = append(fields,
		zap.String("alert_level", string(a.Level)),
		zap.String("message", a.Message),
		zap.Time("alert_time", a.Timestamp),
	)
	for k, v := range a.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	lvl := zapcore.InfoLevel
	switch a.Level {
	case LevelWarning:
		lvl = zapcore.WarnLevel
	case LevelError, LevelCritical:
		lvl = zapcore.ErrorLevel
	}
	if ce := c.log.Check(lvl, "alert_event"); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

// Name 返回通道名称
func (c *LogChannel) Name() string { return c.name }

// MockChannel 记录收到的告警，测试用
type MockChannel struct {
	name      string
	mu        sync.Mutex
	alerts    []Alert
	shouldErr bool
}

// NewMockChannel 创建模拟告警通道
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{name: name}
}

func (c *MockChannel) Send(a Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shouldErr {
		return fmt.Errorf("mock error")
	}
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *MockChannel) Name() string { return c.name }

// Alerts 返回收到的告警副本
func (c *MockChannel) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Alert(nil), c.alerts...)
}

// SetShouldError 设置是否返回错误
func (c *MockChannel) SetShouldError(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shouldErr = v
}

// Count 返回收到的告警数
func (c *MockChannel) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}
