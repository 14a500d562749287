package main

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	model := strings.TrimSpace(os.Getenv("MODEL_ID"))
	if model == "" {
		model = "test-model"
	}
	addr := strings.TrimSpace(os.Getenv("ADDR"))
	if addr == "" {
		addr = ":8081"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           routes(model),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", addr).Str("model", model).Msg("openai-stub listening")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("openai-stub stopped")
	}
}
