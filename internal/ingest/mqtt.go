package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"scrapwatch/internal/config"
	"scrapwatch/internal/model"
	"scrapwatch/internal/observability"
)

// StartMQTT subscribes to the scrap topic and feeds decoded readings into the
// event channel. autopaho owns reconnection; a broker outage surfaces only as
// OnConnectError warnings until the session comes back.
func StartMQTT(ctx context.Context, cfg config.MQTTConfig, out chan<- model.Event, logger *slog.Logger, metrics *observability.Metrics) error {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("mqtt ingest disabled")
		}
		return nil
	}
	u, err := url.Parse(cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("parse mqtt broker url: %w", err)
	}
	if logger != nil {
		logger.Info("mqtt ingest enabled", "broker", cfg.BrokerURL, "topic", cfg.Topic, "client_id", cfg.ClientID)
	}

	clientCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		KeepAlive:                     cfg.KeepAlive,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			if logger != nil {
				logger.Info("mqtt connected", "topic", cfg.Topic)
			}
			if _, err := cm.Subscribe(ctx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{{Topic: cfg.Topic, QoS: 0}},
			}); err != nil && logger != nil {
				logger.Warn("mqtt subscribe failed", "topic", cfg.Topic, "err", err)
			}
		},
		OnConnectError: func(err error) {
			if logger != nil {
				logger.Warn("mqtt connect error", "err", err)
			}
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					HandleRecord(ctx, pr.Packet.Payload, "mqtt", out, logger, metrics)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				if logger != nil {
					logger.Warn("mqtt client error", "err", err)
				}
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, clientCfg)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = cm.Disconnect(context.Background())
	}()
	return nil
}
