package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"scrapwatch/internal/config"
	"scrapwatch/internal/model"
	"scrapwatch/internal/observability"
)

// RESTServer accepts readings over HTTP for environments without a broker,
// and for feeding test data by hand.
type RESTServer struct {
	out     chan<- model.Event
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewRESTServer(out chan<- model.Event, logger *slog.Logger, metrics *observability.Metrics) *RESTServer {
	return &RESTServer{out: out, logger: logger, metrics: metrics}
}

func StartREST(ctx context.Context, cfg config.RESTConfig, out chan<- model.Event, logger *slog.Logger, metrics *observability.Metrics) *http.Server {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("rest ingest disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("rest ingest enabled", "addr", cfg.Addr)
	}
	server := NewRESTServer(out, logger, metrics)
	mux := http.NewServeMux()
	mux.HandleFunc("/events", server.HandleEvents)

	httpServer := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("rest ingest server error", "err", err)
			}
		}
	}()
	return httpServer
}

// HandleEvents accepts a single JSON object or an array of them.
func (s *RESTServer) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 2<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	trim := bytes.TrimSpace(body)
	if len(trim) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	accepted := 0
	failed := 0
	if trim[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trim, &list); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, raw := range list {
			if HandleRecord(r.Context(), raw, "rest", s.out, s.logger, s.metrics) {
				accepted++
			} else {
				failed++
			}
		}
	} else {
		if HandleRecord(r.Context(), trim, "rest", s.out, s.logger, s.metrics) {
			accepted++
		} else {
			failed++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{
		"accepted": accepted,
		"failed":   failed,
	})
}
