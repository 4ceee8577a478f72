package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	Dsn             string        `env:"DSN" envDefault:"postgres://localhost:5432/sidewalk_atlas"`
	MatchBackend    string        `env:"MATCH_BACKEND" envDefault:"postgis"`
	SnapRadiusM     float64       `env:"SNAP_RADIUS_M" envDefault:"50"`
	ValidateBufferM float64       `env:"VALIDATE_BUFFER_M" envDefault:"10"`
	OffsetMeters    float64       `env:"OFFSET_METERS" envDefault:"3"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	OverpassURL     string        `env:"OVERPASS_URL" envDefault:"https://overpass-api.de/api/interpreter"`
	OverpassTimeout time.Duration `env:"OVERPASS_TIMEOUT" envDefault:"90s"`
}

func New() *Config {
	if loadErr := godotenv.Load(".env"); loadErr != nil {
		log.Printf("[Env]: unable to load .env file %v", loadErr)
	}

	var cfg Config

	if parseErr := env.Parse(&cfg); parseErr != nil {
		log.Printf("[Env]: failed to parse environment variables: %v", parseErr)
	}

	return &cfg
}
