package monitor

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowCounters(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordRowsLoaded("trades.csv", 10)
	m.RecordRowsLoaded("trades.csv", 5)
	m.RecordRejected("trades.csv", "invalid_symbol", 2)
	m.RecordRejected("trades.csv", "invalid_symbol", 0)

	assert.Equal(t, 15.0, testutil.ToFloat64(m.rowsLoaded.WithLabelValues("trades.csv")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rowsRejected.WithLabelValues("trades.csv", "invalid_symbol")))
}

func TestReconciledAndRuns(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordReconciled(4, 3, 2)
	m.RecordRun(0.02, nil)
	m.RecordRun(0.01, errors.New("bad input"))

	assert.Equal(t, 4.0, testutil.ToFloat64(m.tradesCleaned))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.tradesConfirmed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tradesDiscrepant))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("error")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordReconciled(1, 1, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "recon_pipeline_trades_cleaned_total 1"))
}

func TestSeparateRegistries(t *testing.T) {
	// 每个实例独立registry，重复创建不应panic
	a := New(DefaultConfig())
	b := New(DefaultConfig())
	a.RecordReconciled(1, 0, 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.tradesCleaned))
}
