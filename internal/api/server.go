package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scrapwatch/internal/config"
	"scrapwatch/internal/engine"
	"scrapwatch/internal/hub"
	"scrapwatch/internal/model"
)

type Server struct {
	engine *engine.Engine
	hub    *hub.Hub
	logger *slog.Logger
}

func NewServer(eng *engine.Engine, h *hub.Hub, logger *slog.Logger) *Server {
	return &Server{engine: eng, hub: h, logger: logger}
}

func Start(ctx context.Context, cfg config.APIConfig, eng *engine.Engine, h *hub.Hub, logger *slog.Logger) *http.Server {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", cfg.Addr)
	}
	server := NewServer(eng, h, logger)

	httpServer := &http.Server{Addr: cfg.Addr, Handler: server.Routes()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/keys", s.handleKeys)
	mux.HandleFunc("/api/aggregates", s.handleAggregates)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// snapshotPayload is the wire form pushed to dashboards. The average is
// rounded to two decimals and the timestamp carries second precision.
type snapshotPayload struct {
	MachineID  string  `json:"machineId"`
	ScrapIndex int     `json:"scrapIndex"`
	Sum        float64 `json:"sumLast60s"`
	Avg        float64 `json:"avgLast60s"`
	Timestamp  string  `json:"timestamp"`
}

func toPayload(snap model.Snapshot) snapshotPayload {
	return snapshotPayload{
		MachineID:  snap.MachineID,
		ScrapIndex: snap.ScrapIndex,
		Sum:        snap.Sum,
		Avg:        math.Round(snap.Avg*100) / 100,
		Timestamp:  snap.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// handleWS registers the connection as an observer and pumps snapshots at it
// until the peer goes away or the hub drops it.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", "err", err)
		}
		return
	}
	obs := s.hub.Register()

	// Reader: the dashboard never sends meaningful data, but the read loop
	// is what notices a dropped peer.
	go func() {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.Unregister(obs)
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		for {
			select {
			case snap := <-obs.C():
				if err := conn.WriteJSON(toPayload(snap)); err != nil {
					if s.logger != nil {
						s.logger.Warn("websocket write failed", "observer", obs.ID(), "err", err)
					}
					s.hub.Unregister(obs)
					return
				}
			case <-obs.Done():
				return
			}
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"observerCount": s.hub.Count(),
		"knownKeyCount": s.engine.KeyCount(),
	})
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	keys := s.engine.AllKeys()
	writeJSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"count": len(keys),
	})
}

// handleAggregates serves the current snapshot for every known key, the read
// a dashboard uses to draw its full grid on connect.
func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	keys := s.engine.AllKeys()
	out := make([]snapshotPayload, 0, len(keys))
	for _, key := range keys {
		out = append(out, toPayload(s.engine.Snapshot(key)))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"aggregates": out,
		"count":      len(out),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
