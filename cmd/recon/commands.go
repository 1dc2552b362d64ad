package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trade-recon-go/config"
	"trade-recon-go/internal/container"
)

type options struct {
	configPath string
	logLevel   string
	inputDir   string
	outputDir  string
	tolerance  float64
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "recon",
		Short:         "Trade ledger validation and counterparty reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "配置文件路径（留空则使用默认值 + RECON_* 环境变量）")
	flags.StringVar(&opts.logLevel, "log-level", "", "日志级别: debug, info, warn, error")
	flags.StringVar(&opts.inputDir, "input-dir", "", "输入目录，覆盖配置")
	flags.StringVar(&opts.outputDir, "output-dir", "", "输出目录，覆盖配置")
	flags.Float64Var(&opts.tolerance, "tolerance", 0, "价格容差，覆盖配置")

	root.AddCommand(newRunCmd(opts), newWatchCmd(opts))
	return root
}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run validation and reconciliation once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := buildContainer(opts)
			if err != nil {
				return err
			}
			defer c.Logger().Close()

			res, err := c.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleaned=%d confirmed=%d discrepant=%d exceptions=%d\n",
				res.Cleaned, res.Confirmed, res.Discrepant, res.Exceptions)
			return nil
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run once, then re-run whenever an input or the config file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := buildContainer(opts)
			if err != nil {
				return err
			}
			if err := c.BuildWatcher(); err != nil {
				return err
			}
			return watch(cmd.Context(), c)
		},
	}
}

func watch(ctx context.Context, c *container.Container) error {
	log := c.Logger()

	// 首次运行失败不退出，等待输入修正后再跑
	if _, err := c.RunOnce(ctx); err != nil {
		log.Warn("initial run failed, waiting for changes", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		return errors.Join(err, c.Stop())
	}
	notify(log, daemon.SdNotifyReady)

	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go watchdog(ctx, c, interval/2)
	}

	<-ctx.Done()
	notify(log, daemon.SdNotifyStopping)
	return c.Stop()
}

// watchdog 只在所有组件健康时才喂狗
func watchdog(ctx context.Context, c *container.Container, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.HealthCheck(); err != nil {
				c.Logger().LogError(err, map[string]interface{}{"action": "watchdog"})
				continue
			}
			notify(c.Logger(), daemon.SdNotifyWatchdog)
		}
	}
}

type warner interface {
	Warn(msg string, fields ...zap.Field)
}

// notify 在 systemd 之外是 no-op
func notify(log warner, state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Warn("sd_notify failed", zap.String("state", state), zap.Error(err))
	}
}

func buildContainer(opts *options) (*container.Container, error) {
	cfg, err := config.LoadWithEnvOverrides(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := opts.apply(&cfg); err != nil {
		return nil, err
	}
	c := container.NewWithConfig(cfg, opts.configPath).WithOverlay(opts.apply)
	if err := c.Build(); err != nil {
		return nil, err
	}
	return c, nil
}

// apply 命令行参数优先级最高
func (o *options) apply(cfg *config.AppConfig) error {
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.inputDir != "" {
		cfg.Input.Dir = o.inputDir
	}
	if o.outputDir != "" {
		cfg.Output.Dir = o.outputDir
	}
	if o.tolerance != 0 {
		cfg.Reconcile.PriceTolerance = o.tolerance
	}
	return config.Validate(*cfg)
}
