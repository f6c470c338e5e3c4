package connector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/confsync/pkg/config"
)

// Factory builds a connector from the daemon configuration
type Factory func(cfg *config.Config) (Connector, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a connector available under the given sync.remote name.
// It panics on duplicate registration.
func Register(remote string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if factory == nil {
		panic("connector: Register factory is nil")
	}
	if _, dup := factories[remote]; dup {
		panic("connector: Register called twice for " + remote)
	}
	factories[remote] = factory
}

// Registered lists the registered remote names
func Registered() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the connector selected by sync.remote. With no remote the
// daemon still runs, against a connector that is never connected.
func Open(cfg *config.Config) (Connector, error) {
	if cfg.Sync.Remote == config.RemoteNone {
		return Disconnected("local"), nil
	}

	factoriesMu.RLock()
	factory, ok := factories[cfg.Sync.Remote]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown remote %q (registered: %v)", cfg.Sync.Remote, Registered())
	}

	c, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connector: %w", cfg.Sync.Remote, err)
	}
	return c, nil
}
