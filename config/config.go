package config

import (
	"time"
)

type AppConfig struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"invoicestack"`
	WatchMode   bool   `env:"WATCH_MODE" envDefault:"false"`
}

type MailboxConfig struct {
	Host     string `env:"EMAIL_HOST,required"`
	Port     int    `env:"EMAIL_PORT" envDefault:"993"`
	Username string `env:"EMAIL_USER,required"`
	Password string `env:"EMAIL_PASS,required"`
	Folder   string `env:"EMAIL_FOLDER" envDefault:"INBOX"`
}

type DatabaseConfig struct {
	DBPath string `env:"DB_PATH" envDefault:"invoices.db"`
	LogSQL bool   `env:"GORM_LOGGING" envDefault:"false"`
}

type WebhookConfig struct {
	WeChatWebhookURL string        `env:"WECHAT_WEBHOOK_URL"`
	Timeout          time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"30s"`
}

type EventsConfig struct {
	RabbitMQURL  string `env:"RABBITMQ_URL"`
	ExchangeName string `env:"EVENTS_EXCHANGE" envDefault:"invoicestack"`
}
