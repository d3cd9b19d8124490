package internal

import "time"

type Config struct {
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=4096"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
