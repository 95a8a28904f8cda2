package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken    string `envconfig:"BOT_TOKEN" required:"true"`
	DBPath      string `envconfig:"DB_PATH" default:"./data/mira.db"`
	Timezone    string `envconfig:"TIMEZONE" default:"Asia/Yangon"`
	MorningTime string `envconfig:"MORNING_TIME" default:"08:00"` // HH:MM local
	NightTime   string `envconfig:"NIGHT_TIME" default:"21:00"`   // HH:MM local
	RunMode     string `envconfig:"RUN_MODE" default:"polling"`   // polling|webhook
	WebhookURL  string `envconfig:"WEBHOOK_URL" default:""`       // required in webhook mode
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`    // healthz + webhook
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`     // debug|info|warn|error
	QueueSize   int    `envconfig:"UPDATE_QUEUE_SIZE" default:"256"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
