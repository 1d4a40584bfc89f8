package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   Server
	Relay    Relay
	Backends Backends
}

type Server struct {
	Host        string        `env:"host" env-default:"localhost"`
	Port        string        `env:"port" env-default:"8080"`
	Timeout     time.Duration `env:"timeout" env-default:"5s"`
	IdleTimeout time.Duration `env:"idle_timeout" env-default:"30s"`
}

type Relay struct {
	DownloadDir         string        `env:"download_dir" env-default:"downloads"`
	RateLimitMax        int           `env:"rate_limit_max" env-default:"5"`
	RateLimitWindow     time.Duration `env:"rate_limit_window" env-default:"60s"`
	RateLimitPerClient  bool          `env:"rate_limit_per_client" env-default:"false"`
	StaleAge            time.Duration `env:"stale_age" env-default:"30m"`
	StoreRemote         bool          `env:"store_remote" env-default:"false"`
	FallbackOnIntrinsic bool          `env:"fallback_on_intrinsic" env-default:"false"`
	HistoryDB           string        `env:"history_db" env-default:"downloads/history.db"`
}

type Backends struct {
	Order       []string      `env:"backend_order" env-separator:"," env-default:"ytdlp,tikwm,ssstik"`
	Timeout     time.Duration `env:"backend_timeout" env-default:"60s"`
	Retries     int           `env:"backend_retries" env-default:"3"`
	YtDlpPath   string        `env:"ytdlp_path" env-default:"yt-dlp"`
	CookiesFile string        `env:"cookies_file" env-default:"cookies.txt"`
	TikwmBase   string        `env:"tikwm_base_url" env-default:"https://www.tikwm.com"`
	SsstikBase  string        `env:"ssstik_base_url" env-default:"https://ssstik.io"`
}

const configPath = "config/local.env"

func MustLoad() *Config {
	var cfg Config

	if _, err := os.Stat(configPath); err == nil {
		if err := godotenv.Load(configPath); err != nil {
			log.Fatalf("cannot load env file: %s", err)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			log.Fatal("failed to read config: " + err.Error())
		}
		return &cfg
	}

	// No env file; fall back to process environment only.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatal("failed to read config from environment: " + err.Error())
	}

	return &cfg
}
