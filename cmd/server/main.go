package main

import (
	"errors"
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/sottey/dispatchtoo/internal/config"
	"github.com/sottey/dispatchtoo/internal/serverapp"
)

func main() {
	configPath := flag.String("config", "dispatchtoo.yml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("load config: %v", err)
		}
		cfg = config.Default()
	}

	handler, err := serverapp.NewHandler(serverapp.Options{
		Config: cfg,
		Logger: log.Default(),
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	log.Printf("listening on http://localhost%s", cfg.Server.Addr)
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, handler))
}
