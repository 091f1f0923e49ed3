package main

import "time"

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	Port            string        `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=16384"`
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,default=256"`
	StoreBackend    string        `env:"STORE_BACKEND,default=badger"`
	BadgerPath      string        `env:"BADGER_PATH,default=./data/messages"`
	PostgresDSN     string        `env:"POSTGRES_DSN"`
	AppendTimeout   time.Duration `env:"APPEND_TIMEOUT,default=5s"`
	HistoryLimit    int           `env:"HISTORY_LIMIT,default=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
}
