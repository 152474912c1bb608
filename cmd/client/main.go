package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/gophchat/internal/client/cli"
	"github.com/dmitrijs2005/gophchat/internal/client/config"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

func main() {

	cfg, err := config.LoadConfig()
	if errors.Is(err, config.ErrUsage) {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, config.Usage)
		return
	}
	if err != nil {
		log.Printf("%v", err)
		return
	}

	logger := logging.NewText(os.Stderr, slog.LevelWarn)
	app := cli.NewApp(cfg, logger, os.Stdin, os.Stdout)

	if err := app.Run(context.Background()); err != nil {
		log.Printf("%v", err)
	}

}
