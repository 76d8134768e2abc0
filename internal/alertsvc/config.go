package alertsvc

import (
	"log"
	"time"

	"alert-systemv1/config"
	"alert-systemv1/internal/alert"
	"alert-systemv1/internal/gateway"
	"alert-systemv1/internal/indicator"
	"alert-systemv1/internal/model"
	redisstore "alert-systemv1/internal/store/redis"
)

// Config holds all env-parsed configuration for the alert engine service.
type Config struct {
	LogLevel string

	// Infrastructure
	RedisAddr     string // empty disables Redis
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	GatewayAddr   string // trigger stream + REST; empty disables
	FeedURL       string

	// Evaluation
	EvalInterval    time.Duration
	QueueSize       int
	HistoryLimit    int
	CandleIntervals []string

	// Persistence
	SnapshotInterval   time.Duration
	SnapshotKey        string
	AlertChannelPrefix string
	CandleRetention    time.Duration

	// Notification sinks
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string
	StreamReplaySize int
	KafkaBrokers     []string
	KafkaAlertTopic  string

	SeedFile string
}

// LoadConfig reads all environment variables and returns a Config.
func LoadConfig() Config {
	return Config{
		LogLevel: config.GetEnv("LOG_LEVEL", "info"),

		RedisAddr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),
		SQLitePath:    config.GetEnv("SQLITE_PATH", "data/alerts.db"),
		MetricsAddr:   config.GetEnv("METRICS_ADDR", ":9090"),
		GatewayAddr:   config.GetEnv("GATEWAY_ADDR", ":8080"),
		FeedURL:       config.GetEnv("FEED_URL", "ws://localhost:9001/ws"),

		EvalInterval:    time.Duration(config.GetInt("EVAL_INTERVAL_MS", 500)) * time.Millisecond,
		QueueSize:       config.GetInt("QUEUE_SIZE", alert.DefaultQueueSize),
		HistoryLimit:    config.GetInt("HISTORY_LIMIT", indicator.DefaultHistoryLimit),
		CandleIntervals: parseIntervals(config.GetEnv("CANDLE_INTERVALS", "1m,5m,15m,1h,4h,1d")),

		SnapshotInterval:   time.Duration(config.GetInt("SNAPSHOT_INTERVAL_SEC", 30)) * time.Second,
		SnapshotKey:        config.GetEnv("SNAPSHOT_KEY", redisstore.DefaultSnapshotKey),
		AlertChannelPrefix: config.GetEnv("ALERT_CHANNEL_PREFIX", redisstore.DefaultChannelPrefix),
		CandleRetention:    time.Duration(config.GetInt("CANDLE_RETENTION_HOURS", 72)) * time.Hour,

		WebhookURL:       config.GetEnv("WEBHOOK_URL", ""),
		TelegramBotToken: config.GetEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   config.GetEnv("TELEGRAM_CHAT_ID", ""),
		StreamReplaySize: config.GetInt("STREAM_REPLAY_SIZE", gateway.DefaultReplaySize),
		KafkaBrokers:     config.SplitList(config.GetEnv("KAFKA_BROKERS", "")),
		KafkaAlertTopic:  config.GetEnv("KAFKA_ALERT_TOPIC", "alert-triggers"),

		SeedFile: config.GetEnv("SEED_FILE", ""),
	}
}

// parseIntervals keeps the known intervals, in the order given.
func parseIntervals(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, iv := range config.SplitList(s) {
		if _, err := model.IntervalDuration(iv); err != nil {
			log.Printf("[alertsvc] skipping invalid candle interval: %q", iv)
			continue
		}
		if !seen[iv] {
			seen[iv] = true
			out = append(out, iv)
		}
	}
	if len(out) == 0 {
		log.Println("[alertsvc] WARNING: no valid candle intervals, using defaults")
		return append([]string(nil), model.Intervals...)
	}
	return out
}
