package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 数据指标
	rowsLoaded   *prometheus.CounterVec
	rowsRejected *prometheus.CounterVec

	// 对账指标
	tradesCleaned    prometheus.Counter
	tradesConfirmed  prometheus.Counter
	tradesDiscrepant prometheus.Counter

	// 运行指标
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "recon",
		Subsystem: "pipeline",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Monitor{
		registry: reg,

		rowsLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rows_loaded_total",
			Help:      "输入行总数（按表）",
		}, []string{"table"}),
		rowsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rows_rejected_total",
			Help:      "被剔除并写入异常报告的行数",
		}, []string{"table", "kind"}),

		tradesCleaned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "trades_cleaned_total",
			Help:      "输出的清洗后成交数",
		}),
		tradesConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "trades_confirmed_total",
			Help:      "有对手方确认的成交数",
		}),
		tradesDiscrepant: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "trades_discrepant_total",
			Help:      "存在差异的成交数",
		}),

		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "runs_total",
			Help:      "运行次数（按结果）",
		}, []string{"result"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "run_duration_seconds",
			Help:      "单次运行耗时（秒）",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
	}
}

// RecordRowsLoaded 记录输入行数
func (m *Monitor) RecordRowsLoaded(table string, n int) {
	m.rowsLoaded.WithLabelValues(table).Add(float64(n))
}

// RecordRejected 记录某个校验门剔除的行数
func (m *Monitor) RecordRejected(table, kind string, n int) {
	if n <= 0 {
		return
	}
	m.rowsRejected.WithLabelValues(table, kind).Add(float64(n))
}

// RecordReconciled 记录对账结果
func (m *Monitor) RecordReconciled(cleaned, confirmed, discrepant int) {
	m.tradesCleaned.Add(float64(cleaned))
	m.tradesConfirmed.Add(float64(confirmed))
	m.tradesDiscrepant.Add(float64(discrepant))
}

// RecordRun 记录一次运行
func (m *Monitor) RecordRun(seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(result).Inc()
	m.runDuration.Observe(seconds)
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
