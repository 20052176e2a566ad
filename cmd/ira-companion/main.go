package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/iamvkosarev/ira-companion/config"
	"github.com/iamvkosarev/ira-companion/internal/app"
	"github.com/iamvkosarev/ira-companion/pkg/log"
	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := flag.Bool("debug", false, "enable debug logging")
	cfgPath := flag.String("config", "", "optional yaml config path")
	flag.Parse()

	ctx, cleanup := log.NewContextWithLogger(ctx, *debug)
	defer cleanup()

	if err := godotenv.Load(); err != nil {
		log.FromCtx(ctx).Debug().Err(err).Msg("no .env file, using environment only")
	}

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to load configuration")
	}

	if err = app.Run(ctx, cfg); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("server error")
	}
}
