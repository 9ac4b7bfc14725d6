package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"scrapwatch/internal/model"
)

// Error reports a record rejected during normalization, naming the offending
// logical field. Callers log and drop; a bad record never reaches the engine.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize: field %q: %s", e.Field, e.Reason)
}

// Accepted spellings per logical field, tried in order; the first key present
// in the record wins. Lookup is case-insensitive.
var (
	machineAliases   = []string{"machineid", "maschinenid", "machine_id"}
	indexAliases     = []string{"scrapindex", "scrapeindex", "scrap_index"}
	valueAliases     = []string{"value", "wert"}
	timestampAliases = []string{"timestamp", "zeitstempel", "ts"}
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// overridable for tests pinning the receipt-time fallback
var timeNow = time.Now

// Normalize maps a loosely-typed record into a canonical Event. A missing or
// unparsable timestamp falls back to the receipt clock so a bad clock on a
// machine never stalls the pipeline.
func Normalize(raw map[string]any) (model.Event, error) {
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[strings.ToLower(strings.TrimSpace(k))] = v
	}

	machineRaw, ok := firstPresent(fields, machineAliases)
	if !ok {
		return model.Event{}, &Error{Field: "machineId", Reason: "missing"}
	}
	machine, ok := machineRaw.(string)
	if !ok {
		return model.Event{}, &Error{Field: "machineId", Reason: "not a string"}
	}
	machine = strings.TrimSpace(machine)
	if machine == "" {
		return model.Event{}, &Error{Field: "machineId", Reason: "empty"}
	}

	indexRaw, ok := firstPresent(fields, indexAliases)
	if !ok {
		return model.Event{}, &Error{Field: "scrapIndex", Reason: "missing"}
	}
	index, err := coerceIndex(indexRaw)
	if err != nil {
		return model.Event{}, err
	}

	valueRaw, ok := firstPresent(fields, valueAliases)
	if !ok {
		return model.Event{}, &Error{Field: "value", Reason: "missing"}
	}
	value, err := coerceValue(valueRaw)
	if err != nil {
		return model.Event{}, err
	}

	ts := timeNow().UTC()
	if tsRaw, ok := firstPresent(fields, timestampAliases); ok {
		if parsed, ok := parseTimestamp(tsRaw); ok {
			ts = parsed.UTC()
		}
	}

	return model.Event{
		MachineID:  machine,
		ScrapIndex: index,
		Value:      value,
		Timestamp:  ts,
	}, nil
}

func firstPresent(fields map[string]any, aliases []string) (any, bool) {
	for _, name := range aliases {
		if v, ok := fields[name]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func coerceValue(raw any) (float64, error) {
	var v float64
	switch t := raw.(type) {
	case float64:
		v = t
	case float32:
		v = float64(t)
	case int:
		v = float64(t)
	case int64:
		v = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, &Error{Field: "value", Reason: "not a number"}
		}
		v = parsed
	default:
		return 0, &Error{Field: "value", Reason: "not a number"}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &Error{Field: "value", Reason: "not finite"}
	}
	return v, nil
}

func coerceIndex(raw any) (int, error) {
	var idx int
	switch t := raw.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, &Error{Field: "scrapIndex", Reason: "not an integer"}
		}
		idx = int(t)
	case int:
		idx = t
	case int64:
		idx = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, &Error{Field: "scrapIndex", Reason: "not an integer"}
		}
		idx = parsed
	default:
		return 0, &Error{Field: "scrapIndex", Reason: "not an integer"}
	}
	if idx < 0 {
		return 0, &Error{Field: "scrapIndex", Reason: "negative"}
	}
	return idx, nil
}

func parseTimestamp(raw any) (time.Time, bool) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
