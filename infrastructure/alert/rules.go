package alert

// Thresholds 运行结果的告警阈值，0 表示关闭对应规则
type Thresholds struct {
	MaxDiscrepancyRatio float64 `yaml:"maxDiscrepancyRatio"`
	MaxExceptions       int     `yaml:"maxExceptions"`
}

// RunSummary 一次运行的结果摘要
type RunSummary struct {
	RunID      string
	Cleaned    int
	Discrepant int
	Exceptions int
	Err        error
}

// Evaluate 根据阈值生成告警；运行失败时只产生一条 ERROR
func (th Thresholds) Evaluate(s RunSummary) []Alert {
	if s.Err != nil {
		return []Alert{{
			Level:   LevelError,
			Message: "reconciliation run failed",
			Fields:  map[string]interface{}{"run_id": s.RunID, "error": s.Err.Error()},
		}}
	}

	var out []Alert
	if th.MaxDiscrepancyRatio > 0 && s.Cleaned > 0 {
		ratio := float64(s.Discrepant) / float64(s.Cleaned)
		if ratio > th.MaxDiscrepancyRatio {
			out = append(out, Alert{
				Level:   LevelWarning,
				Message: "discrepancy ratio above threshold",
				Fields: map[string]interface{}{
					"run_id":     s.RunID,
					"ratio":      ratio,
					"threshold":  th.MaxDiscrepancyRatio,
					"discrepant": s.Discrepant,
					"cleaned":    s.Cleaned,
				},
			})
		}
	}
	if th.MaxExceptions > 0 && s.Exceptions > th.MaxExceptions {
		out = append(out, Alert{
			Level:   LevelWarning,
			Message: "exception count above threshold",
			Fields: map[string]interface{}{
				"run_id":     s.RunID,
				"exceptions": s.Exceptions,
				"threshold":  th.MaxExceptions,
			},
		})
	}
	return out
}
