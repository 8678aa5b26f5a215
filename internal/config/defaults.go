package config

var defaults = map[string]any{
	"secret":                 "",
	"log_level":              "info",
	"log_format":             "json",
	"listen_address":         ":8080",
	"nonce_store":            "sql",
	"nonce_janitor_interval": 60,

	"allowed_networks": "",
	"policy_file":      "",

	"user_auth_ttl":   8, // 8 days
	"history_limit":   200,
	"discovery_limit": 500,
	"login_rate":      10.0,
	"login_burst":     5,
	"support_url":     DEFAULT_SUPPORT_URL,
	"base_url":        "/",

	"storage.local.path": "data/storage.db",

	"mqtt.broker":           "",
	"mqtt.client_id":        "sensor-dashboard",
	"mqtt.username":         "",
	"mqtt.password":         "",
	"mqtt.topic":            "sensors/+/history",
	"mqtt.qos":              1,
	"mqtt.embedded.enabled": false,
	"mqtt.embedded.address": ":1883",
}

func Defaults() map[string]any {
	values := make(map[string]any)
	for k, v := range defaults {
		values[k] = v
	}
	return values
}
