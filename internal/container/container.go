package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"trade-recon-go/config"
	"trade-recon-go/exception"
	"trade-recon-go/export"
	"trade-recon-go/infrastructure/alert"
	"trade-recon-go/infrastructure/logger"
	"trade-recon-go/infrastructure/monitor"
	"trade-recon-go/ingest"
	"trade-recon-go/internal/watch"
	"trade-recon-go/pipeline"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg        *config.AppConfig
	configPath string
	overlay    Overlay

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager

	// 核心服务
	pipeline *pipeline.Pipeline
	watcher  *watch.Watcher

	// HTTP服务器
	metricsServer *http.Server

	// 生命周期管理
	lifecycle *LifecycleManager

	// 同一时间只允许一次运行
	mu     sync.Mutex
	runLog *logger.Logger
}

// Result summarises one completed run.
type Result struct {
	RunID      string
	Cleaned    int
	Confirmed  int
	Discrepant int
	Exceptions int
}

// Overlay 在每次加载配置文件之后执行，例如命令行参数覆盖
type Overlay func(cfg *config.AppConfig) error

// New 创建新的Container实例；configPath 为空时只用默认值和环境变量
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewWithConfig(cfg, configPath), nil
}

// NewWithConfig 使用已加载的配置创建Container
func NewWithConfig(cfg config.AppConfig, configPath string) *Container {
	return &Container{
		cfg:        &cfg,
		configPath: configPath,
		lifecycle:  NewLifecycleManager(),
	}
}

// WithOverlay 设置热更新时重放的覆盖项；启动时的配置应已应用过它
func (c *Container) WithOverlay(fn Overlay) *Container {
	c.overlay = fn
	return c
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}
	c.buildCoreServices()
	c.registerLifecycleComponents()
	c.logger.Info("container built successfully")
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	if c.logger == nil {
		c.logger, err = logger.New(c.cfg.Log)
		if err != nil {
			return fmt.Errorf("create logger failed: %w", err)
		}
	}
	c.logger = c.logger.WithFields(map[string]interface{}{"env": c.cfg.Env})
	c.monitor = monitor.New(monitor.DefaultConfig())
	c.alerts = alert.NewManager([]alert.Channel{alert.NewLogChannel("log", c.logger)}, c.cfg.Alert.Throttle())
	return nil
}

func (c *Container) buildCoreServices() {
	c.pipeline = pipeline.New(pipeline.Config{
		PriceTolerance: c.cfg.Reconcile.PriceTolerance,
		PriceDecimals:  c.cfg.Reconcile.PriceDecimals,
	}, pipeline.ObserverFunc(c.gateApplied))
}

func (c *Container) registerLifecycleComponents() {
	if c.cfg.Metrics.Addr != "" {
		c.lifecycle.Register(&httpServerComponent{
			name:    "metrics_server",
			handler: c.monitor.Handler(),
			addr:    c.cfg.Metrics.Addr,
			logger:  c.logger,
			server:  &c.metricsServer,
		})
	}
}

// BuildWatcher 构建文件监听器（watch 模式），监听输入文件与配置文件
func (c *Container) BuildWatcher() error {
	files := c.watchedFiles()
	w, err := watch.New(files, watch.Config{Debounce: c.cfg.Watch.Debounce()}, c.logger, c.onChange)
	if err != nil {
		return fmt.Errorf("build watcher failed: %w", err)
	}
	c.watcher = w
	c.lifecycle.Register(w)
	return nil
}

func (c *Container) watchedFiles() []string {
	files := c.cfg.Input.Paths()
	if c.configPath != "" {
		files = append(files, c.configPath)
	}
	return files
}

// Logger returns the container's logger; nil before Build.
func (c *Container) Logger() *logger.Logger { return c.logger }

// Monitor returns the metrics collector; nil before Build.
func (c *Container) Monitor() *monitor.Monitor { return c.monitor }

// Pipeline returns the validation/reconciliation pipeline; nil before Build.
func (c *Container) Pipeline() *pipeline.Pipeline { return c.pipeline }

// RunOnce loads the three inputs, runs both phases and writes the two
// reports. A failed run leaves previously written reports untouched.
func (c *Container) RunOnce(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	runID := uuid.NewString()
	c.runLog = c.logger.WithFields(map[string]interface{}{"run_id": runID})
	defer func() { c.runLog = nil }()

	start := time.Now()
	c.runLog.LogRun("run_started", map[string]interface{}{
		"trades":  c.cfg.Input.TradesPath(),
		"fills":   c.cfg.Input.FillsPath(),
		"symbols": c.cfg.Input.SymbolsPath(),
	})

	res, err := c.run(ctx)
	res.RunID = runID
	elapsed := time.Since(start)
	c.monitor.RecordRun(elapsed.Seconds(), err)
	c.raiseAlerts(res, err)
	if err != nil {
		c.runLog.LogError(err, map[string]interface{}{"action": "run"})
		return res, err
	}

	c.runLog.LogRun("run_finished", map[string]interface{}{
		"cleaned":     res.Cleaned,
		"confirmed":   res.Confirmed,
		"discrepant":  res.Discrepant,
		"exceptions":  res.Exceptions,
		"duration_ms": elapsed.Milliseconds(),
		"output_dir":  c.cfg.Output.Dir,
	})
	return res, nil
}

func (c *Container) run(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var in pipeline.Input
	var err error
	if in.Symbols, err = ingest.LoadSymbols(c.cfg.Input.SymbolsPath()); err != nil {
		return Result{}, err
	}
	if in.Trades, err = ingest.LoadTrades(c.cfg.Input.TradesPath()); err != nil {
		return Result{}, err
	}
	if in.Fills, err = ingest.LoadFills(c.cfg.Input.FillsPath()); err != nil {
		return Result{}, err
	}
	c.monitor.RecordRowsLoaded(in.Trades.Source, len(in.Trades.Rows))
	c.monitor.RecordRowsLoaded(in.Fills.Source, len(in.Fills.Rows))
	c.monitor.RecordRowsLoaded(in.Symbols.Source, len(in.Symbols.Rows))

	out, err := c.pipeline.Run(in)
	if err != nil {
		return Result{}, err
	}

	res := Result{Cleaned: len(out.CleanedTrades), Exceptions: len(out.Exceptions)}
	for _, ct := range out.CleanedTrades {
		if ct.CounterpartyConfirmed {
			res.Confirmed++
		}
		if ct.DiscrepancyFlag {
			res.Discrepant++
		}
	}
	c.monitor.RecordReconciled(res.Cleaned, res.Confirmed, res.Discrepant)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if err := export.Write(c.cfg.Output.Dir, out.CleanedTrades, out.Exceptions); err != nil {
		return res, err
	}
	return res, nil
}

func (c *Container) raiseAlerts(res Result, runErr error) {
	alerts := c.cfg.Alert.Evaluate(alert.RunSummary{
		RunID:      res.RunID,
		Cleaned:    res.Cleaned,
		Discrepant: res.Discrepant,
		Exceptions: res.Exceptions,
		Err:        runErr,
	})
	if err := c.alerts.SendAll(alerts); err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "alert"})
	}
}

// Alerts returns the alert manager; nil before Build.
func (c *Container) Alerts() *alert.Manager { return c.alerts }

// gateApplied 把每个校验门的结果同时写入日志和指标
func (c *Container) gateApplied(source, gate string, kind exception.Kind, kept, rejected int) {
	log := c.runLog
	if log == nil {
		log = c.logger
	}
	log.LogGate(source, gate, kept, rejected)
	c.monitor.RecordRejected(source, string(kind), rejected)
}

// onChange 是 watch 模式下的回调：配置文件变化时先热更新容差，再重新运行
func (c *Container) onChange(ctx context.Context, changed []string) error {
	if c.configPath != "" {
		target := filepath.Clean(c.configPath)
		for _, f := range changed {
			if f == target {
				c.reloadConfig()
				break
			}
		}
	}
	_, err := c.RunOnce(ctx)
	return err
}

// reloadConfig 只热更新对账容差；输入路径等其它字段需要重启生效。
// 命令行覆盖项在文件之后重放，--tolerance 不会被配置文件改回去
func (c *Container) reloadConfig() {
	cfg, err := config.LoadWithEnvOverrides(c.configPath)
	if err == nil && c.overlay != nil {
		err = c.overlay(&cfg)
	}
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "reload_config"})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.cfg.Reconcile.PriceTolerance
	c.cfg.Reconcile.PriceTolerance = cfg.Reconcile.PriceTolerance
	c.pipeline.Engine().UpdateTolerance(cfg.Reconcile.PriceTolerance)
	c.logger.LogRun("config_reloaded", map[string]interface{}{
		"old_tolerance": old,
		"new_tolerance": cfg.Reconcile.PriceTolerance,
	})
}

// Start 启动所有生命周期组件
func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")
	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	c.logger.Info("container started")
	return nil
}

// Stop 逆序停止所有组件并刷新日志
func (c *Container) Stop() error {
	c.logger.Info("stopping container...")

	err := c.lifecycle.StopAll()
	if c.watcher != nil {
		// Start 失败时 watcher 不在已启动列表里，这里释放 fsnotify 句柄
		err = errors.Join(err, c.watcher.Stop())
	}
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}

	stats := c.pipeline.Engine().Statistics()
	c.logger.LogRun("container_stopped", map[string]interface{}{
		"runs":       stats.TotalRuns,
		"trades":     stats.TradesSeen,
		"confirmed":  stats.Confirmed,
		"discrepant": stats.Discrepant,
	})
	return errors.Join(err, c.logger.Close())
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}
