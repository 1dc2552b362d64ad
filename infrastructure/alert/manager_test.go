package alert

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"trade-recon-go/infrastructure/logger"
)

func TestSendSetsTimestamp(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Minute)

	if err := mgr.Send(Alert{Level: LevelInfo, Message: "run finished"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if mock.Count() != 1 {
		t.Fatalf("expected 1 alert, got %d", mock.Count())
	}
	if mock.Alerts()[0].Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestThrottling(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Hour)

	for i := 0; i < 3; i++ {
		_ = mgr.Send(Alert{Level: LevelWarning, Message: "discrepancy ratio above threshold", Fields: map[string]interface{}{"ratio": i}})
	}
	if mock.Count() != 1 {
		t.Errorf("same level+message should be throttled, got %d", mock.Count())
	}

	// 不同消息不受影响
	_ = mgr.Send(Alert{Level: LevelWarning, Message: "exception count above threshold"})
	if mock.Count() != 2 {
		t.Errorf("different message should pass, got %d", mock.Count())
	}

	sent, suppressed := mgr.Counts()
	if sent != 2 || suppressed != 2 {
		t.Errorf("counts = %d/%d, want 2/2", sent, suppressed)
	}

	mgr.ResetThrottle()
	_ = mgr.Send(Alert{Level: LevelWarning, Message: "discrepancy ratio above threshold"})
	if mock.Count() != 3 {
		t.Errorf("reset should allow resend, got %d", mock.Count())
	}
}

func TestThrottlerWindow(t *testing.T) {
	th := NewThrottler(time.Minute)
	now := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	th.now = func() time.Time { return now }

	if !th.Allow("k") {
		t.Fatal("first call should pass")
	}
	now = now.Add(30 * time.Second)
	if th.Allow("k") {
		t.Error("inside window should be blocked")
	}
	now = now.Add(31 * time.Second)
	if !th.Allow("k") {
		t.Error("after window should pass")
	}
}

func TestThrottlerDisabled(t *testing.T) {
	th := NewThrottler(0)
	for i := 0; i < 3; i++ {
		if !th.Allow("k") {
			t.Fatalf("call %d blocked with throttling disabled", i)
		}
	}
}

func TestChannelFailures(t *testing.T) {
	bad := NewMockChannel("bad")
	bad.SetShouldError(true)
	good := NewMockChannel("good")

	mgr := NewManager([]Channel{bad}, 0)
	if err := mgr.Send(Alert{Level: LevelError, Message: "x"}); err == nil {
		t.Error("all channels failing should return error")
	}

	mgr.AddChannel(good)
	if err := mgr.Send(Alert{Level: LevelError, Message: "y"}); err != nil {
		t.Errorf("partial failure should not return error: %v", err)
	}
	if good.Count() != 1 {
		t.Errorf("good channel got %d alerts", good.Count())
	}
	if names := mgr.Channels(); len(names) != 2 || names[1] != "good" {
		t.Errorf("channels = %v", names)
	}
}

func TestLogChannelLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ch := NewLogChannel("log", logger.FromZap(zap.New(core)))

	_ = ch.Send(Alert{Level: LevelInfo, Message: "a"})
	_ = ch.Send(Alert{Level: LevelWarning, Message: "b", Fields: map[string]interface{}{"ratio": 0.5}})
	_ = ch.Send(Alert{Level: LevelCritical, Message: "c"})

	entries := logs.FilterMessage("alert_event").All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, want[i])
		}
	}
	if entries[1].ContextMap()["ratio"] != 0.5 {
		t.Errorf("fields not carried: %v", entries[1].ContextMap())
	}
}

func TestEvaluate(t *testing.T) {
	th := Thresholds{MaxDiscrepancyRatio: 0.1, MaxExceptions: 2}

	if got := th.Evaluate(RunSummary{Cleaned: 10, Discrepant: 1, Exceptions: 2}); len(got) != 0 {
		t.Errorf("at threshold should not alert, got %v", got)
	}

	got := th.Evaluate(RunSummary{Cleaned: 10, Discrepant: 2, Exceptions: 3})
	if len(got) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(got))
	}
	if got[0].Message != "discrepancy ratio above threshold" || got[0].Level != LevelWarning {
		t.Errorf("unexpected first alert %+v", got[0])
	}

	got = th.Evaluate(RunSummary{RunID: "r1", Cleaned: 10, Discrepant: 10, Err: errors.New("missing column")})
	if len(got) != 1 || got[0].Level != LevelError {
		t.Fatalf("failed run should raise one error alert, got %v", got)
	}
	if got[0].Fields["run_id"] != "r1" {
		t.Errorf("run id missing: %v", got[0].Fields)
	}

	// 空结果和关闭的规则
	if got := (Thresholds{}).Evaluate(RunSummary{Cleaned: 1, Discrepant: 1, Exceptions: 99}); len(got) != 0 {
		t.Errorf("disabled rules should not alert, got %v", got)
	}
	if got := th.Evaluate(RunSummary{}); len(got) != 0 {
		t.Errorf("empty run should not alert, got %v", got)
	}
}

func TestConcurrentSend(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.Send(Alert{Level: LevelError, Message: "reconciliation run failed"})
		}()
	}
	wg.Wait()

	if mock.Count() != 1 {
		t.Errorf("expected exactly 1 delivered, got %d", mock.Count())
	}
}
