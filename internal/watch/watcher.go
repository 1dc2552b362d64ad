// Package watch re-runs a handler whenever one of a fixed set of files changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"trade-recon-go/infrastructure/logger"
)

// Handler is called with the sorted list of files that changed since the
// previous call. Calls never overlap.
type Handler func(ctx context.Context, changed []string) error

// Config 监听配置
type Config struct {
	Debounce time.Duration // 最后一次变化后的静默时间
}

// DefaultConfig 默认监听配置
func DefaultConfig() Config {
	return Config{Debounce: 500 * time.Millisecond}
}

// Watcher 文件变化监听器
type Watcher struct {
	cfg     Config
	fsw     *fsnotify.Watcher
	files   map[string]struct{}
	handler Handler
	log     *logger.Logger

	stopChan  chan struct{}
	doneChan  chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once

	mu       sync.RWMutex
	started  bool
	runs     int64
	failures int64
	lastRun  time.Time
}

// New 创建监听器。监听的是文件所在目录，编辑器先写临时文件再 rename 也能捕获。
func New(files []string, cfg Config, log *logger.Logger, handler Handler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := newWatcher(files, cfg, log, handler)
	w.fsw = fsw
	return w, nil
}

func newWatcher(files []string, cfg Config, log *logger.Logger, handler Handler) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig().Debounce
	}
	if log == nil {
		log = logger.NewNop()
	}
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[filepath.Clean(f)] = struct{}{}
	}
	return &Watcher{
		cfg:      cfg,
		files:    set,
		handler:  handler,
		log:      log,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Name 组件名
func (w *Watcher) Name() string { return "input_watcher" }

// Start 启动监听
func (w *Watcher) Start(ctx context.Context) error {
	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for d := range dirs {
		if err := w.fsw.Add(d); err != nil {
			return fmt.Errorf("failed to watch %s: %w", d, err)
		}
	}

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	go w.loop(ctx, w.fsw.Events, w.fsw.Errors)
	return nil
}

// Stop 停止监听并等待当前处理结束；未启动或重复调用都是安全的
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stopChan) })

	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if started {
		<-w.doneChan
	}
	var err error
	w.closeOnce.Do(func() {
		if w.fsw != nil {
			err = w.fsw.Close()
		}
	})
	return err
}

// Health reports an error once the watcher has stopped.
func (w *Watcher) Health() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.started {
		return errors.New("watcher not started")
	}
	select {
	case <-w.doneChan:
		return errors.New("watcher stopped")
	default:
		return nil
	}
}

func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	defer close(w.doneChan)

	pending := make(map[string]struct{})
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			pending[filepath.Clean(event.Name)] = struct{}{}
			timer.Reset(w.cfg.Debounce)
		case err, ok := <-errs:
			if !ok {
				return
			}
			// 记录错误但继续监听
			w.log.LogError(err, map[string]interface{}{"component": "watcher"})
		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for f := range pending {
				changed = append(changed, f)
			}
			sort.Strings(changed)
			pending = make(map[string]struct{})
			w.fire(ctx, changed)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if _, ok := w.files[filepath.Clean(event.Name)]; !ok {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) fire(ctx context.Context, changed []string) {
	w.log.Info("inputs changed", zap.Strings("files", changed))
	err := w.handler(ctx, changed)

	w.mu.Lock()
	w.runs++
	w.lastRun = time.Now()
	if err != nil {
		w.failures++
	}
	w.mu.Unlock()

	if err != nil {
		w.log.LogError(err, map[string]interface{}{"component": "watcher", "files": changed})
	}
}

// Stats 监听统计
type Stats struct {
	Runs     int64
	Failures int64
	LastRun  time.Time
}

// Statistics 获取监听统计
func (w *Watcher) Statistics() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Stats{Runs: w.runs, Failures: w.failures, LastRun: w.lastRun}
}
