package main

import (
	"github.com/rs/zerolog/log"

	"warbler/internal/transport/http"
)

func main() {
	if err := http.Run(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
