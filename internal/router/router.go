// Package router resolves a task profile to a concrete model binding
// using the configured capability table.
package router

import (
	"fmt"
	"log"
	"sync"

	"github.com/clayworks/clay/internal/config"
	"github.com/clayworks/clay/pkg/models"
)

// ErrNoProviderAvailable is returned when no entry in a tier's
// preference list has a usable credential.
var ErrNoProviderAvailable = fmt.Errorf("no provider available")

// CredentialChecker reports whether a provider can be used. *config.Config
// satisfies this.
type CredentialChecker interface {
	HasProviderCredential(provider string) bool
}

// Router selects a model binding for a task profile. Routing consults
// only the capability table and credential state: it never makes
// network calls, so the decision is cheap enough to run per task.
// The table is read-only between reloads; Reload swaps it wholesale.
type Router struct {
	mu    sync.RWMutex
	table RoutingConfig
	creds CredentialChecker
}

// RoutingConfig is the subset of configuration the router reads.
type RoutingConfig interface {
	ForTier(tier models.ComplexityTier) []config.ModelChoice
}

// New creates a Router over the given capability table.
func New(table RoutingConfig, creds CredentialChecker) *Router {
	return &Router{table: table, creds: creds}
}

// Route returns the binding for the profile's tier: the first entry in
// the tier's preference list whose provider has a configured credential.
// Returns ErrNoProviderAvailable (wrapped with the tier) when the list
// is empty or no provider is usable.
func (r *Router) Route(profile models.TaskProfile) (models.ModelBinding, error) {
	r.mu.RLock()
	table, creds := r.table, r.creds
	r.mu.RUnlock()

	choices := table.ForTier(profile.Tier)
	if len(choices) == 0 {
		return models.ModelBinding{}, fmt.Errorf("tier %q: %w", profile.Tier, ErrNoProviderAvailable)
	}

	for _, choice := range choices {
		if !creds.HasProviderCredential(choice.Provider) {
			log.Printf("[router] skipping %s/%s: no credential for provider", choice.Provider, choice.Model)
			continue
		}
		return models.ModelBinding{
			Provider:    choice.Provider,
			Model:       choice.Model,
			Tier:        profile.Tier,
			Temperature: choice.Temperature,
			MaxTokens:   choice.MaxTokens,
		}, nil
	}

	return models.ModelBinding{}, fmt.Errorf("tier %q: %w", profile.Tier, ErrNoProviderAvailable)
}

// Reload replaces the capability table and credential state. Routes in
// flight finish against the table they started with.
func (r *Router) Reload(table RoutingConfig, creds CredentialChecker) {
	r.mu.Lock()
	r.table = table
	r.creds = creds
	r.mu.Unlock()
	log.Printf("[router] routing table reloaded")
}

// RouteAll resolves bindings for every tier up front. Used by the
// orchestrator to fail a run before any task is scheduled when a needed
// tier has no usable provider.
func (r *Router) RouteAll(tiers ...models.ComplexityTier) (map[models.ComplexityTier]models.ModelBinding, error) {
	bindings := make(map[models.ComplexityTier]models.ModelBinding, len(tiers))
	for _, tier := range tiers {
		binding, err := r.Route(models.TaskProfile{Tier: tier})
		if err != nil {
			return nil, err
		}
		bindings[tier] = binding
	}
	return bindings, nil
}
