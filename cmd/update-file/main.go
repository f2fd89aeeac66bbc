package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/idriskr/portfolio-admin/internal/api"
	"github.com/idriskr/portfolio-admin/internal/config"
	"github.com/idriskr/portfolio-admin/internal/function"
	"github.com/idriskr/portfolio-admin/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
		l.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	router, err := api.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build handler")
	}
	lambda.Start(function.New(router))
}
