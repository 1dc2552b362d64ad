package logger

import (
	"fmt"
	"sort"
	"strings"
)

// Schema 定义每个日志事件所需的关键字段，便于集中校验。
type Schema struct {
	Event    string
	Required []string
}

var schemas = map[string]Schema{
	"run_started": {
		Event:    "run_started",
		Required: []string{"run_id", "trades", "fills", "symbols"},
	},
	"run_finished": {
		Event:    "run_finished",
		Required: []string{"run_id", "cleaned", "confirmed", "discrepant", "exceptions", "duration_ms"},
	},
	"gate_applied": {
		Event:    "gate_applied",
		Required: []string{"source", "gate", "kept", "rejected"},
	},
	"config_reloaded": {
		Event:    "config_reloaded",
		Required: []string{"old_tolerance", "new_tolerance"},
	},
}

// KnownEvents 返回所有事件名，便于外部生成文档。
func KnownEvents() []string {
	names := make([]string, 0, len(schemas))
	for k := range schemas {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ValidateEvent 检查日志字段是否包含 schema 中要求的 key；未登记的事件不校验。
func ValidateEvent(event string, fields map[string]interface{}) error {
	s, ok := schemas[event]
	if !ok {
		return nil
	}
	var missing []string
	for _, key := range s.Required {
		if _, exists := fields[key]; !exists {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing fields: %s", event, strings.Join(missing, ","))
	}
	return nil
}
