package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"templateflow/internal/logging"
)

// Entry is one parsed JSON log record.
type Entry struct {
	Time      time.Time
	Level     string
	Message   string
	Component string
	ItemID    int64
	Identity  string
	Fields    map[string]any
	Raw       string
}

// Parse decodes a JSON log line. Lines that are not JSON objects are
// returned as plain messages with ok=false.
func Parse(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{Message: line, Raw: line}, false
	}
	entry := Entry{Raw: line, Fields: make(map[string]any)}
	for key, value := range raw {
		switch key {
		case "ts", "time":
			if s, ok := value.(string); ok {
				entry.Time, _ = time.Parse(time.RFC3339Nano, s)
			}
		case "level":
			entry.Level = strings.ToLower(fmt.Sprint(value))
		case "msg":
			entry.Message = fmt.Sprint(value)
		case logging.FieldComponent:
			entry.Component = fmt.Sprint(value)
		case logging.FieldIdentity:
			entry.Identity = fmt.Sprint(value)
		case logging.FieldItemID:
			switch v := value.(type) {
			case float64:
				entry.ItemID = int64(v)
			case string:
				entry.ItemID, _ = strconv.ParseInt(v, 10, 64)
			}
		case "source":
		default:
			entry.Fields[key] = value
		}
	}
	return entry, true
}

// Filter selects entries. Zero fields match everything.
type Filter struct {
	ItemID    int64
	Identity  string
	Component string
	// MinLevel is one of debug, info, warn, error.
	MinLevel string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if f.ItemID != 0 && e.ItemID != f.ItemID {
		return false
	}
	if f.Identity != "" && !strings.EqualFold(f.Identity, e.Identity) {
		return false
	}
	if f.Component != "" && !strings.EqualFold(f.Component, e.Component) {
		return false
	}
	if floor, ok := levelRank[strings.ToLower(f.MinLevel)]; ok {
		if rank, known := levelRank[e.Level]; known && rank < floor {
			return false
		}
	}
	return true
}

// Format renders e in the console layout: time, level, component, message,
// then sorted key=value pairs.
func (e Entry) Format() string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format(time.RFC3339))
		b.WriteByte(' ')
	}
	if e.Level != "" {
		b.WriteString(strings.ToUpper(e.Level))
		b.WriteByte(' ')
	}
	if e.Component != "" {
		b.WriteString(e.Component)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)

	pairs := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		pairs[k] = v
	}
	if e.ItemID != 0 {
		pairs[logging.FieldItemID] = e.ItemID
	}
	if e.Identity != "" {
		pairs[logging.FieldIdentity] = e.Identity
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := fmt.Sprint(pairs[k])
		if strings.ContainsAny(value, " =\"") {
			value = strconv.Quote(value)
		}
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(value)
	}
	return b.String()
}
