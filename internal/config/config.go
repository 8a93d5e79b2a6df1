package config

import "os"

type Config struct {
	Port           string
	JWTSecret      string
	RedisURL       string
	FrontendOrigin string

	// Client-side settings, read by cmd/chat.
	ServerURL string
	Token     string
}

func Load() Config {
	cfg := Config{
		Port:           os.Getenv("PORT"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RedisURL:       os.Getenv("REDIS_URL"),
		FrontendOrigin: os.Getenv("FRONTEND_ORIGIN"),
		ServerURL:      os.Getenv("SERVER_URL"),
		Token:          os.Getenv("HEARTLINE_TOKEN"),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost:" + cfg.Port
	}
	return cfg
}
