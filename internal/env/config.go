package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds every setting the broker reads from the process environment,
// loaded via LoadConfig. Field names mirror the CLI flags of the same name
// in cmd/start.go, which override these when set explicitly.
type Config struct {
	Host string `env:"NEUROPIPE_HOST,default=0.0.0.0"`
	Port int    `env:"NEUROPIPE_PORT,default=9092"`

	NumListeners int  `env:"NEUROPIPE_LISTENERS,default=0"`
	Reuseport    bool `env:"NEUROPIPE_REUSEPORT,default=true"`

	// SessionQueueCap of 0 leaves each session's outbound queue unbounded,
	// the protocol's baseline; a positive value opts into the slow-consumer
	// drop policy instead.
	SessionQueueCap int `env:"NEUROPIPE_SESSION_QUEUE_CAP,default=0"`

	AdminHost string `env:"NEUROPIPE_ADMIN_HOST,default=0.0.0.0"`
	AdminPort int    `env:"NEUROPIPE_ADMIN_PORT,default=9093"`

	Trace     bool `env:"NEUROPIPE_TRACE,default=false"`
	DebugHTTP bool `env:"NEUROPIPE_DEBUG_HTTP,default=false"`
}

// LoadConfig reads .env.local, if present, into the process environment and
// then decodes Config from it.
func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
