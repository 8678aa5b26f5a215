package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sensor-dashboard/internal/config"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

// Broker is an embedded MQTT server devices publish their readings to.
type Broker struct {
	server *mqtt.Server
	hook   *historyHook
	logger *slog.Logger
}

func NewBroker(cfg config.MQTTConfig, recorder *Recorder) (*Broker, error) {
	logger := slog.With("component", "mqtt-broker")

	server := mqtt.New(&mqtt.Options{Logger: logger})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("failed to add auth hook: %w", err)
	}

	hook := &historyHook{
		recorder: recorder,
		filter:   cfg.Topic,
		ctx:      context.Background(),
		logger:   logger,
	}
	if err := server.AddHook(hook, nil); err != nil {
		return nil, fmt.Errorf("failed to add history hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      "t1",
		Address: cfg.Embedded.Address,
	})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("failed to add TCP listener: %w", err)
	}

	return &Broker{server: server, hook: hook, logger: logger}, nil
}

// Start serves until ctx is done.
func (b *Broker) Start(ctx context.Context) error {
	b.hook.ctx = ctx
	if err := b.server.Serve(); err != nil {
		return fmt.Errorf("failed to start MQTT broker: %w", err)
	}
	b.logger.Info("MQTT broker listening")

	go func() {
		<-ctx.Done()
		b.Close()
	}()
	return nil
}

func (b *Broker) Close() error {
	b.logger.Info("Stopping MQTT broker")
	return b.server.Close()
}

// historyHook records every publish on the history topic.
type historyHook struct {
	mqtt.HookBase
	recorder *Recorder
	filter   string
	ctx      context.Context
	logger   *slog.Logger
}

func (h *historyHook) ID() string {
	return "sensor-history"
}

func (h *historyHook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mqtt.OnConnect,
		mqtt.OnPublish,
	}, []byte{b})
}

func (h *historyHook) OnConnect(cl *mqtt.Client, pk packets.Packet) error {
	h.logger.Debug("Client connected", "client", cl.ID)
	return nil
}

// OnPublish never rejects a packet: a reading that fails to record is
// logged and still delivered to other subscribers.
func (h *historyHook) OnPublish(cl *mqtt.Client, pk packets.Packet) (packets.Packet, error) {
	if !TopicMatches(h.filter, pk.TopicName) {
		return pk, nil
	}
	err := h.recorder.HandleMessage(h.ctx, SourceBroker, h.filter, pk.TopicName, pk.Payload)
	if err != nil && !errors.Is(err, ErrInvalidPayload) {
		h.logger.Error("Failed to record published reading", "topic", pk.TopicName, "error", err)
	}
	return pk, nil
}
