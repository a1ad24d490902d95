package internal

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is shared by every getfile command. Each command only reads the
// fields it needs; flags override the values loaded here.
type Config struct {
	LogLevel string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`

	Server            string        `env:"SERVER,default=localhost" validate:"required,max=253"`
	Port              int           `env:"PORT,default=8080" validate:"min=0,max=65535"`
	MaxPending        int           `env:"MAX_PENDING,default=5" validate:"min=1"`
	MaxHeaderBytes    int           `env:"MAX_HEADER_BYTES,default=4096" validate:"min=64"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT,default=10s"`
	ChunkSizeKb       int           `env:"CHUNK_SIZE_KB,default=4" validate:"min=1,max=1024"`

	// NumberOfRequests is per worker: fetch performs
	// NumberOfRequests*NumberOfWorkers downloads.
	NumberOfWorkers   int           `env:"NUMBER_OF_WORKERS,default=8" validate:"min=1,max=1024"`
	NumberOfRequests  int           `env:"NUMBER_OF_REQUESTS,default=10" validate:"min=1"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=0s"`
	DebugPort         int           `env:"DEBUG_PORT,default=0" validate:"min=0,max=65535"`

	ContentFilepath  string `env:"CONTENT_FILEPATH,default=content.txt"`
	WorkloadFilepath string `env:"WORKLOAD_FILEPATH,default=workload.txt"`
	OutputDir        string `env:"OUTPUT_DIR,default=downloads"`
	BadgerFilepath   string `env:"BADGER_FILEPATH,default=getfile-ledger"`
	TransferFilepath string `env:"TRANSFER_FILEPATH"`

	MQTTBroker string `env:"MQTT_BROKER"`
	MQTTTopic  string `env:"MQTT_TOPIC,default=getfile/transfers"`
}

// LoadConfig reads an optional .env file then the process environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) ChunkSize() int {
	return c.ChunkSizeKb * 1024
}

// TotalRequests is the number of downloads a fetch run performs.
func (c Config) TotalRequests() int {
	return c.NumberOfRequests * c.NumberOfWorkers
}
