package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trade-recon-go/infrastructure/alert"
	"trade-recon-go/infrastructure/logger"
)

// AppConfig holds the runtime configuration of the reconciliation job.
type AppConfig struct {
	Env       string          `yaml:"env"`
	Input     InputConfig     `yaml:"input"`
	Output    OutputConfig    `yaml:"output"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Log       logger.Config   `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Watch     WatchConfig     `yaml:"watch"`
	Alert     AlertConfig     `yaml:"alert"`
}

// InputConfig names the three source files. Relative file names resolve
// against Dir.
type InputConfig struct {
	Dir     string `yaml:"dir"`
	Trades  string `yaml:"trades"`
	Fills   string `yaml:"fills"`
	Symbols string `yaml:"symbols"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

type ReconcileConfig struct {
	PriceTolerance float64 `yaml:"priceTolerance"` // 含边界
	PriceDecimals  int32   `yaml:"priceDecimals"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 留空则关闭
}

type WatchConfig struct {
	DebounceMs int `yaml:"debounceMs"`
}

type AlertConfig struct {
	alert.Thresholds `yaml:",inline"`

	ThrottleSec int `yaml:"throttleSec"` // 同类告警最小间隔
}

// Throttle returns the minimum gap between two identical alerts.
func (a AlertConfig) Throttle() time.Duration {
	return time.Duration(a.ThrottleSec) * time.Second
}

// Debounce returns the quiet period the watcher waits before re-running.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

func (in InputConfig) resolve(name string) string {
	if filepath.IsAbs(name) || in.Dir == "" {
		return name
	}
	return filepath.Join(in.Dir, name)
}

func (in InputConfig) TradesPath() string  { return in.resolve(in.Trades) }
func (in InputConfig) FillsPath() string   { return in.resolve(in.Fills) }
func (in InputConfig) SymbolsPath() string { return in.resolve(in.Symbols) }

// Paths lists every input file, trades first.
func (in InputConfig) Paths() []string {
	return []string{in.TradesPath(), in.FillsPath(), in.SymbolsPath()}
}

// Default returns a config that runs against ./data and writes to ./output.
func Default() AppConfig {
	return AppConfig{
		Env: "dev",
		Input: InputConfig{
			Dir:     "data",
			Trades:  "trades.csv",
			Fills:   "counterparty_fills.csv",
			Symbols: "symbols_reference.csv",
		},
		Output: OutputConfig{Dir: "output"},
		Reconcile: ReconcileConfig{
			PriceTolerance: 0.01,
			PriceDecimals:  2,
		},
		Log:   logger.DefaultConfig(),
		Watch: WatchConfig{DebounceMs: 500},
		Alert: AlertConfig{
			ThrottleSec: 300,
			Thresholds:  alert.Thresholds{MaxDiscrepancyRatio: 0.05},
		},
	}
}

// Load reads YAML config from path over the defaults and validates it.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config (defaults only when path is empty), reads
// a .env file if one exists, then applies RECON_* environment overrides.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return cfg, err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

func applyEnv(cfg *AppConfig) error {
	if v := os.Getenv("RECON_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("RECON_INPUT_DIR"); v != "" {
		cfg.Input.Dir = v
	}
	if v := os.Getenv("RECON_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("RECON_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RECON_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("RECON_PRICE_TOLERANCE"); v != "" {
		tol, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RECON_PRICE_TOLERANCE: %w", err)
		}
		cfg.Reconcile.PriceTolerance = tol
	}
	return nil
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Input.Trades == "" || cfg.Input.Fills == "" || cfg.Input.Symbols == "" {
		return errors.New("input.trades/fills/symbols are required")
	}
	if cfg.Output.Dir == "" {
		return errors.New("output.dir is required")
	}
	if cfg.Reconcile.PriceTolerance <= 0 {
		return errors.New("reconcile.priceTolerance must be > 0")
	}
	if cfg.Reconcile.PriceDecimals < 1 || cfg.Reconcile.PriceDecimals > 8 {
		return fmt.Errorf("reconcile.priceDecimals must be within [1,8], got %d", cfg.Reconcile.PriceDecimals)
	}
	if cfg.Watch.DebounceMs < 0 {
		return errors.New("watch.debounceMs must be >= 0")
	}
	if cfg.Alert.ThrottleSec < 0 || cfg.Alert.MaxExceptions < 0 {
		return errors.New("alert.throttleSec/maxExceptions must be >= 0")
	}
	if cfg.Alert.MaxDiscrepancyRatio < 0 || cfg.Alert.MaxDiscrepancyRatio > 1 {
		return fmt.Errorf("alert.maxDiscrepancyRatio must be within [0,1], got %v", cfg.Alert.MaxDiscrepancyRatio)
	}
	return nil
}
