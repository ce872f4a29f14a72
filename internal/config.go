package internal

import "time"

type Config struct {
	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	Host           string `env:"HOST,required=true"`
	Port           int    `env:"PORT,required=true"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	DirectoryBaseURL  string        `env:"DRIVER_DIRECTORY_URL,required=true"`
	DirectoryTimeout  time.Duration `env:"DRIVER_DIRECTORY_TIMEOUT,required=true"`
	DirectoryCacheTTL time.Duration `env:"DRIVER_DIRECTORY_CACHE_TTL,required=true"`
}
