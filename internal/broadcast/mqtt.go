package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"

	"github.com/lotusgame/duel-server-go/internal/errors"
	"github.com/lotusgame/duel-server-go/internal/match"
)

const (
	mqttKeepAlive = 8
	mqttQOS       = 1
)

// MQTTConfig configures the MQTT publisher.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	// TopicPrefix is prepended to the match id, e.g. duel/match/<id>.
	TopicPrefix string
}

// mqttPublisher is the part of the autopaho connection used for publishing.
type mqttPublisher interface {
	Publish(ctx context.Context, publish *paho.Publish) (*paho.PublishResponse, error)
}

// MQTT publishes match updates as retained messages, one topic per match.
type MQTT struct {
	cfg       MQTTConfig
	brokerURL *url.URL
	logger    *zap.Logger

	mu   sync.RWMutex
	conn mqttPublisher
}

func NewMQTT(cfg MQTTConfig, logger *zap.Logger) (*MQTT, error) {
	brokerURL, err := url.Parse(cfg.BrokerURL)
	if err != nil {
		return nil, errors.NewInternalErrorFromErr(err, "invalid mqtt broker url", errors.Details{"was": cfg.BrokerURL})
	}
	return &MQTT{
		cfg:       cfg,
		brokerURL: brokerURL,
		logger:    logger.Named("mqtt"),
	}, nil
}

// Topic returns the topic updates of the given match are published to.
func (m *MQTT) Topic(matchID string) string {
	return strings.TrimSuffix(m.cfg.TopicPrefix, "/") + "/" + matchID
}

// Open connects to the broker and keeps the connection until ctx is done.
func (m *MQTT) Open(ctx context.Context) error {
	conn, err := autopaho.NewConnection(ctx, m.clientConfig())
	if err != nil {
		return errors.NewInternalErrorFromErr(err, "create mqtt connection", nil)
	}
	m.setConn(conn)
	defer m.setConn(nil)

	<-ctx.Done()
	disconnectCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Disconnect(disconnectCtx); err != nil {
		return errors.NewInternalErrorFromErr(err, "disconnect from mqtt broker", nil)
	}
	return nil
}

func (m *MQTT) setConn(conn mqttPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conn = conn
}

func (m *MQTT) clientConfig() autopaho.ClientConfig {
	return autopaho.ClientConfig{
		BrokerUrls: []*url.URL{m.brokerURL},
		KeepAlive:  mqttKeepAlive,
		OnConnectionUp: func(*autopaho.ConnectionManager, *paho.Connack) {
			m.logger.Info("mqtt connection established", zap.String("broker", m.brokerURL.String()))
		},
		OnConnectError: func(err error) {
			errors.Log(m.logger, errors.Error{
				Code:    errors.ErrCommunication,
				Err:     err,
				Message: "mqtt connection failed",
			})
		},
		ClientConfig: paho.ClientConfig{
			ClientID: m.cfg.ClientID,
			Router:   paho.NewStandardRouter(),
			OnServerDisconnect: func(d *paho.Disconnect) {
				reason := fmt.Sprintf("code %d", d.ReasonCode)
				if d.Properties != nil && d.Properties.ReasonString != "" {
					reason = d.Properties.ReasonString
				}
				errors.Log(m.logger, errors.Error{
					Code:    errors.ErrCommunication,
					Message: "mqtt broker requested disconnect: " + reason,
				})
			},
			OnClientError: func(err error) {
				errors.Log(m.logger, errors.Error{
					Code:    errors.ErrCommunication,
					Err:     err,
					Message: "mqtt client error",
				})
			},
		},
	}
}

// Publish sends the view to the match topic. Updates are retained so that
// late subscribers see the latest state.
func (m *MQTT) Publish(ctx context.Context, matchID string, view match.View) error {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()
	if conn == nil {
		return errors.Error{Code: errors.ErrCommunication, Message: "mqtt not connected",
			Details: errors.Details{"match_id": matchID}}
	}

	payload, err := json.Marshal(view)
	if err != nil {
		return errors.Error{Code: errors.ErrInternal, Kind: errors.KindEncodeJSON, Err: err,
			Message: "encode match update", Details: errors.Details{"match_id": matchID}}
	}
	topic := m.Topic(matchID)
	if _, err := conn.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     mqttQOS,
		Retain:  true,
		Payload: payload,
	}); err != nil {
		return errors.Error{Code: errors.ErrCommunication, Err: err, Message: "publish match update",
			Details: errors.Details{"match_id": matchID, "topic": topic}}
	}
	return nil
}
