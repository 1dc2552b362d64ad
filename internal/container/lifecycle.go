package container

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"trade-recon-go/infrastructure/logger"
)

// Lifecycle 生命周期接口
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

// LifecycleManager 生命周期管理器
type LifecycleManager struct {
	components []Lifecycle
	started    int
	mu         sync.RWMutex
}

// NewLifecycleManager 创建新的生命周期管理器
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		components: make([]Lifecycle, 0),
	}
}

// Register 注册组件
func (m *LifecycleManager) Register(component Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component)
}

// Len 已注册组件数
func (m *LifecycleManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.components)
}

// StartAll 按顺序启动所有组件，失败时回滚已启动的组件
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, component := range m.components {
		if err := component.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.components[j].Stop()
			}
			m.started = 0
			return fmt.Errorf("start %s failed: %w", componentName(component, i), err)
		}
		m.started = i + 1
	}
	return nil
}

// StopAll 逆序停止已启动的组件，返回所有停止错误
func (m *LifecycleManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for i := m.started - 1; i >= 0; i-- {
		if err := m.components[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", componentName(m.components[i], i), err))
		}
	}
	m.started = 0
	return errors.Join(errs...)
}

// CheckHealth 检查所有组件健康状态
func (m *LifecycleManager) CheckHealth() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Health(); err != nil {
			return fmt.Errorf("%s unhealthy: %w", componentName(component, i), err)
		}
	}
	return nil
}

type named interface {
	Name() string
}

func componentName(c Lifecycle, i int) string {
	if n, ok := c.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("component %d", i)
}

// httpServerComponent 暴露 /metrics 的HTTP服务器组件
type httpServerComponent struct {
	name    string
	handler http.Handler
	addr    string
	logger  *logger.Logger
	server  **http.Server
	started bool
	mu      sync.Mutex
}

func (h *httpServerComponent) Name() string { return h.name }

func (h *httpServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}

	// 先绑定端口，地址被占用时启动直接失败
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("%s listen: %w", h.name, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", h.handler)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	*h.server = srv

	go func() {
		h.logger.Info("http server listening", zap.String("component", h.name), zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.LogError(err, map[string]interface{}{
				"component": h.name,
				"action":    "serve",
			})
		}
	}()

	h.started = true
	return nil
}

func (h *httpServerComponent) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started || *h.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := (*h.server).Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", h.name, err)
	}

	h.logger.Info("http server stopped", zap.String("component", h.name))
	h.started = false
	return nil
}

func (h *httpServerComponent) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return fmt.Errorf("%s not started", h.name)
	}
	return nil
}
