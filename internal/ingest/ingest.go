package ingest

import (
	"context"
	"encoding/json"
	"log/slog"

	"scrapwatch/internal/model"
	"scrapwatch/internal/normalize"
	"scrapwatch/internal/observability"
)

// SendNonBlocking hands an event to the engine channel without ever blocking
// the transport. Best-effort: a full channel drops the event with a warning.
func SendNonBlocking(ctx context.Context, out chan<- model.Event, ev model.Event, logger *slog.Logger) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("event channel full, dropping event", "machine_id", ev.MachineID, "scrap_index", ev.ScrapIndex)
		}
		return false
	}
}

// HandleRecord decodes a raw JSON payload, normalizes it and forwards the
// event. Malformed records are logged and dropped; they never reach the
// aggregator and never stop the transport.
func HandleRecord(ctx context.Context, payload []byte, source string, out chan<- model.Event, logger *slog.Logger, metrics *observability.Metrics) bool {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		if logger != nil {
			logger.Warn("discarding undecodable record", "source", source, "err", err)
		}
		metrics.EventRejected()
		return false
	}
	ev, err := normalize.Normalize(obj)
	if err != nil {
		if logger != nil {
			logger.Warn("discarding malformed record", "source", source, "err", err)
		}
		metrics.EventRejected()
		return false
	}
	return SendNonBlocking(ctx, out, ev, logger)
}
