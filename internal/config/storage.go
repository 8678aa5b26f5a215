package config

type Storage struct {
	SQLite *SQLLiteStorage `mapstructure:"local,omitempty"`
}

type SQLLiteStorage struct {
	Path string `mapstructure:"path,omitempty"`
}

// MQTTConfig configures how sensor readings reach the dashboard.
// Either an embedded broker is started, or Broker points at an external one.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"` // e.g. tcp://localhost:1883
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`

	Embedded EmbeddedBroker `mapstructure:"embedded"`
}

type EmbeddedBroker struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}
