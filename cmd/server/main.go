package main

import (
	"net/http"
	"os"

	"github.com/idriskr/portfolio-admin/internal/api"
	"github.com/idriskr/portfolio-admin/internal/config"
	"github.com/idriskr/portfolio-admin/internal/logger"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		l := logger.New(os.Getenv("LOG_LEVEL"), "console")
		l.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	router, err := api.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build handler")
	}

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Msg("update-file server listening")
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
