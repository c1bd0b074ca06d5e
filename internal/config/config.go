// Package config предоставляет структуры и функцию для парсинга и загрузки конфига.
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек сервиса.
type Config struct {
	Env                     string `yaml:"env"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	RedisConnection         `yaml:"redis_connection"`
	Backend                 `yaml:"backend"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	PaymentProvider         `yaml:"payment_provider"`
	PaymentFlow             `yaml:"payment_flow"`
	RabbitMQ                `yaml:"rabbitmq"`
}

// Backend структура для настройки клиента REST-бэкенда платформы.
type Backend struct {
	BaseURL           string `yaml:"base_url"`
	PaymentReturnPath string `yaml:"payment_return_path" env-default:"/payment/return"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с сессионным jwt-токеном.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// PaymentProvider структура для настройки клиента платёжного шлюза.
type PaymentProvider struct {
	ShopID        string `yaml:"shop_id"`
	SecretKey     string `yaml:"secret_key"`
	APIURL        string `yaml:"api_url"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// PaymentFlow структура с окнами валидности платёжного маркера.
// Окно сохранения сессии покрывает весь правдоподобный круг
// редиректа на шлюз и обратно; окно защиты от повторной отправки
// только блокирует почти одновременные повторные попытки оплаты.
type PaymentFlow struct {
	PreservationWindow time.Duration `yaml:"preservation_window" env-default:"30m"`
	DuplicateWindow    time.Duration `yaml:"duplicate_window" env-default:"5m"`
}

// RabbitMQ структура для настройки публикации событий уведомлений.
type RabbitMQ struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange" env-default:"notifications"`
}

// MustLoad функция для загрузки конфига, падает при отсутствии CONFIG_PATH или файла.
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
