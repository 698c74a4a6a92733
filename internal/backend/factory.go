package backend

import (
	"log"

	"github.com/testrunner/dashboard/internal/app"
	"github.com/testrunner/dashboard/internal/config"
)

// FromConfig returns the mock backend when cfg.UseMock is set and a client
// for the configured API otherwise.
func FromConfig(cfg *config.Config) app.Backend {
	if cfg.UseMock {
		log.Println("Using MOCK test backend (USE_MOCK=true)")
		return NewMockClient()
	}
	log.Printf("Using test backend API: %s", cfg.APIURL)
	return NewRealClient(Options{
		BaseURL:       cfg.APIURL,
		Token:         cfg.APIToken,
		Timeout:       cfg.RequestTimeout,
		HealthTimeout: cfg.HealthTimeout,
	})
}
