package main

import (
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/fanoshome/bingo/go/internal/config"
)

func setupServer(cfg config.Config, services *Services) *http.Server {
	// Setup HTTP/2 server
	return &http.Server{
		Addr:    cfg.Gateway.Addr,
		Handler: h2c.NewHandler(services.Gateway.Handler(), &http2.Server{}),
	}
}
