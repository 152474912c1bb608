package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/gophchat/internal/server"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
	"github.com/dmitrijs2005/gophchat/internal/server/config"
)

func main() {

	ctx := context.Background()

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

	if cfg.IssueAdminToken {
		token, err := auth.GenerateToken("admin", []byte(cfg.SecretKey), cfg.AdminTokenValidity)
		if err != nil {
			log.Printf("%v", err)
			return
		}
		fmt.Println(token)
		return
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
