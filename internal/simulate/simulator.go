package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// Simulator publishes random scrap readings over MQTT. It deliberately uses
// the alternate field spellings some machines emit, so a demo run exercises
// the normalizer's alias handling end to end.
type Simulator struct {
	Machines []string
	Indices  []int
	rng      *rand.Rand
}

func New(seed int64) *Simulator {
	return &Simulator{
		Machines: []string{"A1", "B1", "C1"},
		Indices:  []int{1, 2, 3},
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Reading produces one raw record as a machine would emit it.
func (s *Simulator) Reading(now time.Time) map[string]any {
	machine := s.Machines[s.rng.Intn(len(s.Machines))]
	index := s.Indices[s.rng.Intn(len(s.Indices))]
	value := math.Round((1.0+s.rng.Float64()*4.0)*100) / 100
	return map[string]any{
		"maschinenId": machine,
		"scrapeIndex": index,
		"value":       value,
		"zeitstempel": now.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z"),
	}
}

// Interval jitters publish pacing between 0.5 and 2 seconds.
func (s *Simulator) Interval() time.Duration {
	return 500*time.Millisecond + time.Duration(s.rng.Int63n(int64(1500*time.Millisecond)))
}

// Run publishes readings until ctx is done.
func Run(ctx context.Context, brokerURL, clientID string, logger *slog.Logger) error {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return fmt.Errorf("parse broker url: %w", err)
	}
	cm, err := autopaho.NewConnection(ctx, autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		OnConnectionUp: func(_ *autopaho.ConnectionManager, _ *paho.Connack) {
			if logger != nil {
				logger.Info("simulator connected", "broker", brokerURL)
			}
		},
		OnConnectError: func(err error) {
			if logger != nil {
				logger.Warn("simulator connect error", "err", err)
			}
		},
		ClientConfig: paho.ClientConfig{ClientID: clientID},
	})
	if err != nil {
		return err
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return err
	}

	sim := New(time.Now().UnixNano())
	published := 0
	for {
		reading := sim.Reading(time.Now())
		payload, err := json.Marshal(reading)
		if err != nil {
			return err
		}
		topic := fmt.Sprintf("machines/%s/scrap", reading["maschinenId"])
		if _, err := cm.Publish(ctx, &paho.Publish{Topic: topic, Payload: payload}); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if logger != nil {
				logger.Warn("publish failed", "topic", topic, "err", err)
			}
		} else {
			published++
			if logger != nil {
				logger.Info("published reading", "n", published, "topic", topic)
			}
		}
		t := time.NewTimer(sim.Interval())
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			_ = cm.Disconnect(context.Background())
			return nil
		}
	}
}
