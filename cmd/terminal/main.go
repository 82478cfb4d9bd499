package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/farekeeper/internal/terminal/app"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.LoadConfig()

	a, err := app.NewApp(cfg, app.NewStdinReader(os.Stdin))
	if err != nil {
		log.Fatalf("%v", err)
	}

	a.Run(ctx)
}
