package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sensor-dashboard/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscriber records readings from an external MQTT broker.
type Subscriber struct {
	client   mqtt.Client
	filter   string
	qos      byte
	recorder *Recorder
	logger   *slog.Logger
}

func NewSubscriber(cfg config.MQTTConfig, recorder *Recorder) *Subscriber {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	s := &Subscriber{
		filter:   cfg.Topic,
		qos:      cfg.QoS,
		recorder: recorder,
		logger:   slog.With("component", "mqtt-subscriber", "broker", cfg.Broker),
	}

	// Subscriptions are lost on reconnect unless re-issued.
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		s.logger.Info("Connected to MQTT broker")
		s.subscribe(context.Background())
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		s.logger.Warn("Lost connection to MQTT broker", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Start connects and subscribes; it stops on ctx cancellation.
func (s *Subscriber) Start(ctx context.Context) error {
	token := s.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("error connecting to MQTT broker: %w", token.Error())
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Subscriber) subscribe(ctx context.Context) {
	handler := func(client mqtt.Client, msg mqtt.Message) {
		s.handle(ctx, msg)
	}
	if token := s.client.Subscribe(s.filter, s.qos, handler); token.Wait() && token.Error() != nil {
		s.logger.Error("Subscription error", "topic", s.filter, "error", token.Error())
		return
	}
	s.logger.Info("Subscribed to topic", "topic", s.filter, "qos", s.qos)
}

func (s *Subscriber) handle(ctx context.Context, msg mqtt.Message) {
	s.logger.Debug("Received MQTT message", "topic", msg.Topic())
	if err := s.recorder.HandleMessage(ctx, SourceSubscriber, s.filter, msg.Topic(), msg.Payload()); err != nil {
		s.logger.Warn("Failed to record reading", "topic", msg.Topic(), "error", err)
	}
}

func (s *Subscriber) Stop() {
	if s.client.IsConnected() {
		s.logger.Info("Disconnecting from MQTT broker")
		s.client.Disconnect(250)
	}
}
