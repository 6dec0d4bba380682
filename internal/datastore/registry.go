// Package datastore wires configured Aquarius systems into catalog sessions.
package datastore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"aquarius-catalog/internal/catalog"
	"aquarius-catalog/internal/config"
	"aquarius-catalog/internal/services"
	"aquarius-catalog/internal/ts"
	"aquarius-catalog/pkg/logging"
	"aquarius-catalog/pkg/metrics"
)

// DataStore is a session whose catalog can be queried and read from
type DataStore interface {
	Name() string
	CurrentCatalog() *catalog.Catalog
	RefreshCatalog(ctx context.Context) error
	ReadTimeSeries(ctx context.Context, req services.ReadRequest) (*ts.TimeSeries, error)
	CheckRequirement(ctx context.Context, requirement string) RequirementCheck
	Status() Status
	PluginProperties() PluginProperties
	Close(ctx context.Context) error
}

// Dependencies are shared by every datastore a registry creates
type Dependencies struct {
	Logger  *logging.StructuredLogger
	Metrics *metrics.Collector
}

// Factory builds and opens a datastore from its configuration
type Factory func(ctx context.Context, cfg config.DataStoreConfig, deps Dependencies) (DataStore, error)

// Registry maps configured type tags to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]registration
}

type registration struct {
	tag     string
	factory Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]registration)}
}

// NewDefaultRegistry creates a registry with AquariusDataStore registered
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	if err := r.Register(config.DataStoreType, NewAquariusFactory()); err != nil {
		panic(err)
	}
	return r
}

// Register adds a factory under tag. Tags compare case-insensitively.
func (r *Registry) Register(tag string, factory Factory) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return fmt.Errorf("datastore type tag is empty")
	}
	if factory == nil {
		return fmt.Errorf("datastore type %s has no factory", tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(tag)
	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("datastore type %s is already registered", tag)
	}
	r.factories[key] = registration{tag: tag, factory: factory}
	return nil
}

// Create resolves cfg.Type and runs its factory
func (r *Registry) Create(ctx context.Context, cfg config.DataStoreConfig, deps Dependencies) (DataStore, error) {
	r.mu.RLock()
	reg, ok := r.factories[strings.ToLower(strings.TrimSpace(cfg.Type))]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown datastore type %q (registered: %s)", cfg.Type, strings.Join(r.Types(), ", "))
	}
	return reg.factory(ctx, cfg, deps)
}

// Types lists the registered tags sorted
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.factories))
	for _, reg := range r.factories {
		tags = append(tags, reg.tag)
	}
	sort.Strings(tags)
	return tags
}
