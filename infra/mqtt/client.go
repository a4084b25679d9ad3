// Package mqtt connects the advisor to a simulator bridge over MQTT. The
// bridge publishes vehicle positions, parking occupancy and step
// departures; the advisor publishes stop commands and waits for their
// acknowledgment.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/simfeed"
	"github.com/kilianp07/parkadvisor/infra/logger"
)

// ErrAckTimeout is returned when no acknowledgment is received in time.
var ErrAckTimeout = errors.New("timeout waiting for ack")

var (
	_ simfeed.Feed         = (*Feed)(nil)
	_ simfeed.StopReserver = (*Feed)(nil)
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	QoS         map[string]byte `json:"qos"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	AckTimeout  time.Duration   `json:"ack_timeout"`
	MinStopSec  int             `json:"min_stop_sec"`
	MaxStopSec  int             `json:"max_stop_sec"`
	TLSConfig   *tls.Config     `json:"-"`
}

func (c Config) topic(parts ...string) string {
	prefix := c.TopicPrefix
	if prefix == "" {
		prefix = "sim"
	}
	return prefix + "/" + strings.Join(parts, "/")
}

func (c Config) qos(kind string) byte {
	return c.QoS[kind]
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

type positionMsg struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type occupancyMsg struct {
	Occupancy int `json:"occupancy"`
}

type stopCommand struct {
	CommandID string `json:"command_id"`
	VehicleID string `json:"vehicle_id"`
	ParkingID string `json:"parking_id"`
	Duration  int    `json:"duration"`
	Timestamp int64  `json:"timestamp"`
}

type stopAck struct {
	CommandID string `json:"command_id"`
	Accepted  bool   `json:"accepted"`
	Reason    string `json:"reason,omitempty"`
}

// Feed caches the latest simulator state pushed by the bridge.
type Feed struct {
	cli pahoClient
	cfg Config
	log logger.Logger

	mu        sync.RWMutex
	positions map[string]model.Position
	occupancy map[string]int
	acks      map[string]chan stopAck
	steps     chan simfeed.Step
}

// NewFeed connects to the broker and subscribes to the bridge topics.
func NewFeed(cfg Config) (*Feed, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffMS <= 0 {
		cfg.BackoffMS = 100
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 2 * time.Second
	}
	if cfg.MinStopSec <= 0 {
		cfg.MinStopSec = 200
	}
	if cfg.MaxStopSec < cfg.MinStopSec {
		cfg.MaxStopSec = max(2000, cfg.MinStopSec)
	}

	log := logger.New("mqtt_feed")
	f := &Feed{
		cfg:       cfg,
		log:       log,
		positions: make(map[string]model.Position),
		occupancy: make(map[string]int),
		acks:      make(map[string]chan stopAck),
		steps:     make(chan simfeed.Step, 16),
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		subs := []struct {
			topic string
			qos   byte
			h     paho.MessageHandler
		}{
			{cfg.topic("vehicle", "+", "position"), cfg.qos("state"), f.onPosition},
			{cfg.topic("parking", "+", "occupancy"), cfg.qos("state"), f.onOccupancy},
			{cfg.topic("stop", "ack"), cfg.qos("ack"), f.onAck},
			{cfg.topic("step"), cfg.qos("step"), f.onStep},
		}
		for _, s := range subs {
			if token := c.Subscribe(s.topic, s.qos, s.h); token.Wait() && token.Error() != nil {
				log.Errorf("subscribe %s: %v", s.topic, token.Error())
			}
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	f.cli = c
	return f, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, 1, false)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// topicID extracts the identifier from prefix/<kind>/<id>/<leaf>.
func topicID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[len(parts)-2]
}

func (f *Feed) onPosition(_ paho.Client, msg paho.Message) {
	var m positionMsg
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		f.log.Errorf("failed to decode position on %s: %v", msg.Topic(), err)
		return
	}
	id := topicID(msg.Topic())
	if id == "" {
		return
	}
	f.mu.Lock()
	f.positions[id] = model.Position{Lat: m.Lat, Lon: m.Lon}
	f.mu.Unlock()
}

func (f *Feed) onOccupancy(_ paho.Client, msg paho.Message) {
	var m occupancyMsg
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		f.log.Errorf("failed to decode occupancy on %s: %v", msg.Topic(), err)
		return
	}
	id := topicID(msg.Topic())
	if id == "" {
		return
	}
	f.mu.Lock()
	f.occupancy[id] = m.Occupancy
	f.mu.Unlock()
}

func (f *Feed) onStep(_ paho.Client, msg paho.Message) {
	var s simfeed.Step
	if err := json.Unmarshal(msg.Payload(), &s); err != nil {
		f.log.Errorf("failed to decode step: %v", err)
		return
	}
	select {
	case f.steps <- s:
	default:
		f.log.Warnf("step %.0f dropped, consumer too slow", s.SimTime)
	}
}

func (f *Feed) onAck(_ paho.Client, msg paho.Message) {
	var m stopAck
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		f.log.Errorf("failed to decode ack: %v", err)
		return
	}
	f.mu.Lock()
	ch, ok := f.acks[m.CommandID]
	f.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- m:
	default:
	}
}

// Steps delivers departures announced by the bridge.
func (f *Feed) Steps() <-chan simfeed.Step { return f.steps }

func (f *Feed) VehiclePosition(_ context.Context, vehicleID string) (model.Position, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.positions[vehicleID]
	if !ok {
		return model.Position{}, simfeed.ErrUnknownVehicle
	}
	return p, nil
}

// TrackParkings registers the parking areas known to the advisor as empty
// until the bridge reports their occupancy. Reported values are kept.
func (f *Feed) TrackParkings(areas []model.ParkingArea) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pa := range areas {
		if _, ok := f.occupancy[pa.ID]; !ok {
			f.occupancy[pa.ID] = 0
		}
	}
}

func (f *Feed) ParkingOccupancy(_ context.Context, parkingID string) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, ok := f.occupancy[parkingID]
	if !ok {
		return 0, simfeed.ErrUnknownParking
	}
	return n, nil
}

// ReserveStop publishes a stop command and waits for the bridge verdict.
func (f *Feed) ReserveStop(ctx context.Context, vehicleID, parkingID string) error {
	cmd := stopCommand{
		CommandID: uuid.NewString(),
		VehicleID: vehicleID,
		ParkingID: parkingID,
		Duration:  f.cfg.MinStopSec + rand.IntN(f.cfg.MaxStopSec-f.cfg.MinStopSec+1),
		Timestamp: time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	ch := make(chan stopAck, 1)
	f.mu.Lock()
	f.acks[cmd.CommandID] = ch
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.acks, cmd.CommandID)
		f.mu.Unlock()
	}()

	if err := f.publish(ctx, f.cfg.topic("vehicle", vehicleID, "stop"), payload); err != nil {
		return err
	}

	timer := time.NewTimer(f.cfg.AckTimeout)
	defer timer.Stop()
	select {
	case ack := <-ch:
		if !ack.Accepted {
			return fmt.Errorf("%w: %s", simfeed.ErrStopRejected, ack.Reason)
		}
		return nil
	case <-timer.C:
		return ErrAckTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Feed) publish(ctx context.Context, topic string, payload []byte) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(f.cfg.BackoffMS) * time.Millisecond
	bo.MaxElapsedTime = 0
	attempt := 0
	op := func() error {
		attempt++
		token := f.cli.Publish(topic, f.cfg.qos("command"), false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			f.log.Errorf("publish attempt %d failed: %v", attempt, err)
			return err
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(f.cfg.MaxRetries)), ctx))
}

// Connected reports whether the broker connection is up.
func (f *Feed) Connected() bool { return f.cli != nil && f.cli.IsConnected() }

// Disconnect gracefully closes the MQTT connection.
func (f *Feed) Disconnect() {
	if f.cli != nil && f.cli.IsConnected() {
		f.cli.Disconnect(250)
	}
}
