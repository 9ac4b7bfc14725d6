package normalize

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCanonicalFields(t *testing.T) {
	ev, err := Normalize(map[string]any{
		"machineId":  "A1",
		"scrapIndex": float64(2),
		"value":      3.5,
		"timestamp":  "2025-06-01T12:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "A1", ev.MachineID)
	assert.Equal(t, 2, ev.ScrapIndex)
	assert.Equal(t, 3.5, ev.Value)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), ev.Timestamp)
}

func TestNormalizeGermanAliases(t *testing.T) {
	ev, err := Normalize(map[string]any{
		"maschinenId": "B1",
		"scrapeIndex": float64(1),
		"value":       2.25,
		"zeitstempel": "2025-06-01T12:00:05Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "B1", ev.MachineID)
	assert.Equal(t, 1, ev.ScrapIndex)
}

func TestNormalizeAliasPriority(t *testing.T) {
	// Both spellings present: the first alias in priority order wins.
	ev, err := Normalize(map[string]any{
		"machineId":   "primary",
		"maschinenId": "secondary",
		"scrapIndex":  float64(0),
		"value":       1.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "primary", ev.MachineID)
}

func TestNormalizeStringCoercions(t *testing.T) {
	ev, err := Normalize(map[string]any{
		"machineId":  "C1",
		"scrapIndex": "3",
		"value":      "4.5",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, ev.ScrapIndex)
	assert.Equal(t, 4.5, ev.Value)
}

func TestNormalizeRejections(t *testing.T) {
	cases := []struct {
		name  string
		raw   map[string]any
		field string
	}{
		{"missing value", map[string]any{"machineId": "A1", "scrapIndex": float64(1)}, "value"},
		{"missing machine", map[string]any{"scrapIndex": float64(1), "value": 1.0}, "machineId"},
		{"empty machine", map[string]any{"machineId": "  ", "scrapIndex": float64(1), "value": 1.0}, "machineId"},
		{"machine not a string", map[string]any{"machineId": float64(3), "scrapIndex": float64(1), "value": 1.0}, "machineId"},
		{"missing index", map[string]any{"machineId": "A1", "value": 1.0}, "scrapIndex"},
		{"negative index", map[string]any{"machineId": "A1", "scrapIndex": float64(-1), "value": 1.0}, "scrapIndex"},
		{"fractional index", map[string]any{"machineId": "A1", "scrapIndex": 1.5, "value": 1.0}, "scrapIndex"},
		{"value not numeric", map[string]any{"machineId": "A1", "scrapIndex": float64(1), "value": "abc"}, "value"},
		{"value nan", map[string]any{"machineId": "A1", "scrapIndex": float64(1), "value": math.NaN()}, "value"},
		{"value inf", map[string]any{"machineId": "A1", "scrapIndex": float64(1), "value": math.Inf(1)}, "value"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.raw)
			require.Error(t, err)
			var nerr *Error
			require.True(t, errors.As(err, &nerr))
			assert.Equal(t, tc.field, nerr.Field)
		})
	}
}

func TestNormalizeTimestampFallback(t *testing.T) {
	receipt := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return receipt }
	defer func() { timeNow = orig }()

	// Missing and unparsable timestamps both land on the receipt clock;
	// the record is accepted either way.
	for _, raw := range []map[string]any{
		{"machineId": "A1", "scrapIndex": float64(1), "value": 1.0},
		{"machineId": "A1", "scrapIndex": float64(1), "value": 1.0, "timestamp": "not-a-time"},
		{"machineId": "A1", "scrapIndex": float64(1), "value": 1.0, "timestamp": float64(12345)},
	} {
		ev, err := Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, receipt, ev.Timestamp)
	}
}

func TestNormalizeCaseInsensitiveKeys(t *testing.T) {
	ev, err := Normalize(map[string]any{
		"MachineID":  "A1",
		"ScrapIndex": float64(1),
		"VALUE":      2.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "A1", ev.MachineID)
	assert.Equal(t, 2.0, ev.Value)
}
