package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host         string
	Port         string
	LogLevel     string
	BaseURL      string
	JWTSecret    string
	APIUser      string
	APIPassword  string
	RedisURL     string
	ServicesFile string

	Inactivity   time.Duration
	RetryDelay   time.Duration
	CommandDelay time.Duration
	JobTimeout   time.Duration

	MQTTBroker string
	MQTTTopic  string

	KafkaBrokers []string
	KafkaTopic   string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

func LoadConfig() *Config {
	return &Config{
		Host:         getEnv("HOST", "0.0.0.0"),
		Port:         getEnv("PORT", "8000"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		BaseURL:      getEnv("BASE_URL", ""),
		JWTSecret:    getEnv("JWT_ACCESS_SECRET", ""),
		APIUser:      getEnv("API_USER", "admin"),
		APIPassword:  getEnv("API_PASSWORD", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		ServicesFile: getEnv("SERVICES_FILE", "services.yaml"),

		Inactivity:   getEnvDuration("INACTIVITY_TIMEOUT", 10*time.Minute),
		RetryDelay:   getEnvDuration("QUEUE_RETRY_DELAY", 30*time.Second),
		CommandDelay: getEnvDuration("QUEUE_COMMAND_DELAY", 2*time.Second),
		JobTimeout:   getEnvDuration("QUEUE_JOB_TIMEOUT", 0),

		MQTTBroker: getEnv("MQTT_BROKER", ""),
		MQTTTopic:  getEnv("MQTT_TOPIC", "trackgate/events"),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "trackgate.records"),

		InfluxURL:    getEnv("INFLUX_URL", ""),
		InfluxToken:  getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUX_ORG", ""),
		InfluxBucket: getEnv("INFLUX_BUCKET", "tracks"),
	}
}

// Addr is the listen address of the HTTP API.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// TestMode reports whether the gateway runs on in-memory storage.
func TestMode() bool {
	return strings.ToLower(os.Getenv("TEST_MODE")) == "true"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.TrimSpace(value)
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(key, ""), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
