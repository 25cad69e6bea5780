package flow

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RegistryConfig holds the dependencies shared by every account's controller.
type RegistryConfig struct {
	Chain           ChainReader
	Signer          Signer
	Recorder        Recorder
	Publisher       Publisher
	Timeout         time.Duration
	NotificationTTL time.Duration
	IdleTTL         time.Duration
	Clock           func() time.Time
	After           func(time.Duration) <-chan time.Time
	Logger          *zap.Logger
}

// DefaultIdleTTL is how long an account's controller survives without being requested.
const DefaultIdleTTL = 30 * time.Minute

// Registry hands out one Controller per logged-in account. Controllers idle for longer
// than IdleTTL with no outstanding signer call are evicted on a later lookup.
type Registry struct {
	config      RegistryConfig
	guest       *Controller
	idleTTL     time.Duration
	clock       func() time.Time
	mu          sync.Mutex
	controllers map[string]*registryEntry
	lastSweep   time.Time
}

type registryEntry struct {
	controller *Controller
	lastUsed   time.Time
}

// NewRegistry validates the shared dependencies.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Chain == nil {
		return nil, errMissingChain
	}
	if cfg.Signer == nil {
		return nil, errMissingSigner
	}
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	registry := &Registry{
		config:      cfg,
		idleTTL:     idleTTL,
		clock:       clock,
		controllers: make(map[string]*registryEntry),
	}
	guest, err := registry.newController("")
	if err != nil {
		return nil, err
	}
	registry.guest = guest
	return registry, nil
}

// Guest returns the shared controller used for reads without a session. Its write
// actions fail with ErrNotAuthenticated.
func (r *Registry) Guest() *Controller {
	return r.guest
}

// For returns the controller of account, creating it on first use.
func (r *Registry) For(account string) (*Controller, error) {
	key := strings.ToLower(strings.TrimSpace(account))
	if key == "" {
		return nil, ErrNotAuthenticated
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	r.sweepLocked(now)
	if entry, ok := r.controllers[key]; ok {
		entry.lastUsed = now
		return entry.controller, nil
	}
	controller, err := r.newController(key)
	if err != nil {
		return nil, err
	}
	r.controllers[key] = &registryEntry{controller: controller, lastUsed: now}
	return controller, nil
}

// Len returns the number of live account controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// sweepLocked evicts idle controllers at most once per idle period.
func (r *Registry) sweepLocked(now time.Time) {
	if now.Sub(r.lastSweep) < r.idleTTL {
		return
	}
	r.lastSweep = now
	for key, entry := range r.controllers {
		if now.Sub(entry.lastUsed) < r.idleTTL || entry.controller.Busy() {
			continue
		}
		delete(r.controllers, key)
		if r.config.Logger != nil {
			r.config.Logger.Debug("idle controller evicted", zap.String("account", key))
		}
	}
}

func (r *Registry) newController(account string) (*Controller, error) {
	return NewController(ControllerConfig{
		Account:         account,
		Chain:           r.config.Chain,
		Signer:          r.config.Signer,
		Recorder:        r.config.Recorder,
		Publisher:       r.config.Publisher,
		Timeout:         r.config.Timeout,
		NotificationTTL: r.config.NotificationTTL,
		Clock:           r.config.Clock,
		After:           r.config.After,
		Logger:          r.config.Logger,
	})
}

// Drain waits for the outstanding signer calls of every controller.
func (r *Registry) Drain(ctx context.Context) error {
	r.mu.Lock()
	controllers := make([]*Controller, 0, len(r.controllers))
	for _, entry := range r.controllers {
		controllers = append(controllers, entry.controller)
	}
	r.mu.Unlock()

	for _, controller := range controllers {
		if err := controller.Drain(ctx); err != nil {
			return err
		}
	}
	return nil
}
