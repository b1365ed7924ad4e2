package main

import (
	"context"
	"fmt"
	"log"

	"github.com/m3rciful/appealbot/core/bootstrap"
	corecmd "github.com/m3rciful/appealbot/core/cmd"
	"github.com/m3rciful/appealbot/internal/app"
	"github.com/m3rciful/appealbot/internal/config"
	"github.com/m3rciful/appealbot/internal/store"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: bootstrapApp,
	})
	if err != nil {
		log.Fatal(err)
	}
}

func bootstrapApp(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("unexpected config %T", carrier)
	}
	res, err := bootstrap.Run(context.Background(), bootstrap.Options[store.Store]{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		NewStorage: app.NewStorage,
		Modules: bootstrap.Modules[store.Store]{
			Seeders:  []bootstrap.Seeder[store.Store]{app.SeedAdmin(cfg.Telegram.AdminID)},
			Services: app.Provider(cfg, nil),
		},
	})
	if err != nil {
		return nil, err
	}
	a, ok := res.Services.(*app.App)
	if !ok {
		_ = res.Close()
		return nil, fmt.Errorf("unexpected services %T", res.Services)
	}
	a.AddCloser(res.Close)
	return a, nil
}
