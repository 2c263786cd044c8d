// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек всех сервисов.
type Config struct {
	Env                     string        `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string        `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
	RabbitMQURL             string        `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries      int           `yaml:"rabbitmq_max_retries" env-default:"10"`
	RabbitMQRetryDelay      time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
	PaymentWebhookSecret    string        `yaml:"payment_webhook_secret" env:"PAYMENT_WEBHOOK_SECRET"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Tracker                 `yaml:"tracker"`
	Wildberries             `yaml:"wildberries"`
	Telegram                `yaml:"telegram"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:"0.0.0.0:8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном межсервисной аутентификации
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Tracker структура для настройки фоновых задач: опроса отслеживаемых
// товаров и проверки истекающих подписок. Интервалы независимы.
type Tracker struct {
	PollInterval     time.Duration `yaml:"poll_interval" env-default:"3h"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout" env-default:"15s"`
	ExpiryInterval   time.Duration `yaml:"expiry_interval" env-default:"1h"`
	ExpiryWithinDays int           `yaml:"expiry_within_days" env-default:"3"`
}

// Wildberries структура для настройки клиента карточек маркетплейса
type Wildberries struct {
	CardAPIURL string `yaml:"card_api_url" env-default:"https://card.wb.ru/cards/v1/detail"`
}

// Telegram структура для настройки отправки уведомлений в чат
type Telegram struct {
	BotAPIURL string `yaml:"bot_api_url" env-default:"https://api.telegram.org"`
	BotToken  string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
}

// MustLoad функция для загрузки конфига, путь берется из переменной
// окружения CONFIG_PATH. При любой ошибке завершает процесс.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
