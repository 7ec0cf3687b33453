package cli

import (
	"fmt"
	"time"

	"github.com/roamline/roamline/internal/agent"
	"github.com/roamline/roamline/internal/config"
	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/llm"
	"github.com/roamline/roamline/internal/places"
	"github.com/roamline/roamline/internal/store"
	"github.com/roamline/roamline/internal/subagent"
)

// buildStore opens the configured session store.
func buildStore(cfg config.Config) (store.Store, error) {
	ttl := time.Duration(cfg.Session.IdleMinutes) * time.Minute
	if cfg.Session.Store == "sqlite" {
		st, err := store.OpenSQLite(cfg.Session.SQLitePath, ttl, log)
		if err != nil {
			return nil, fmt.Errorf("opening session database: %w", err)
		}
		log.Info().Str("path", cfg.Session.SQLitePath).Msg("using SQLite session store")
		return st, nil
	}
	log.Info().Msg("using in-memory session store")
	return store.NewMemoryStore(ttl, log), nil
}

// buildSupervisor wires the turn engine from config.
func buildSupervisor(cfg config.Config, st store.Store) (*agent.Supervisor, error) {
	var llmClient llm.Client
	switch cfg.LLM.Provider {
	case "mock":
		llmClient = &llm.MockClient{ProviderName: "mock"}
	default:
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("llm.apiKey is required for the %s provider", cfg.LLM.Provider)
		}
		llmClient = llm.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.Model,
			time.Duration(cfg.LLM.TimeoutSeconds)*time.Second, log)
	}

	var placesClient places.Client
	switch cfg.Places.Provider {
	case "mock":
		placesClient = &places.MockClient{}
	default:
		placesClient = places.NewStaticClient()
	}

	travel := subagent.NewRunner(
		&subagent.StaticSearcher{Kind: "accommodation", Options: demoAccommodation},
		&subagent.StaticSearcher{Kind: "flight", Options: demoFlights},
		time.Duration(cfg.Search.TimeoutSeconds)*time.Second,
		log,
	)

	return agent.NewSupervisor(st, llmClient, placesClient, travel, log), nil
}

// Canned travel offers backing the static sub-agents. A real deployment
// swaps these searchers for booking-API integrations.
var demoAccommodation = []domain.TravelOption{
	{ID: "stay-central", Kind: "accommodation", Name: "Central Boutique Hotel", Detail: "4-star, old town", Price: 160, Currency: "EUR"},
	{ID: "stay-budget", Kind: "accommodation", Name: "Riverside Guesthouse", Detail: "family-run B&B", Price: 85, Currency: "EUR"},
	{ID: "stay-apartment", Kind: "accommodation", Name: "Skyline Apartment", Detail: "2 bedrooms, kitchen", Price: 120, Currency: "EUR"},
}

var demoFlights = []domain.TravelOption{
	{ID: "fly-direct", Kind: "flight", Name: "Direct morning flight", Detail: "nonstop, 2h 35m", Price: 210, Currency: "EUR"},
	{ID: "fly-cheap", Kind: "flight", Name: "One-stop evening flight", Detail: "1 stop, 5h 10m", Price: 135, Currency: "EUR"},
}
