package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/m3rciful/bookingbot/app"
	corecmd "github.com/m3rciful/bookingbot/core/cmd"
	"github.com/m3rciful/bookingbot/core/logger"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: corecmd.DefaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := app.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			appCfg, ok := cfg.(*app.Config)
			if !ok {
				return nil, os.ErrInvalid
			}
			a, err := app.Bootstrap(appCfg)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	})
	if err != nil {
		logger.Error(context.Background(), "app", "exit", slog.String("err", err.Error()))
		_ = logger.Shutdown()
		os.Exit(1)
	}
}
