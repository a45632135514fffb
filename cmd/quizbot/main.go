package main

import (
	"context"
	"log"

	"github.com/m3rciful/quizbot/core/cmd"
	"github.com/m3rciful/quizbot/internal/app"
)

func main() {
	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: func(ctx context.Context, cfg cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			return app.Bootstrap(ctx, cfg.(*app.Config), app.Deps{})
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
