package storage

import (
	"errors"

	"github.com/cuemby/confsync/pkg/types"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// Store defines the interface for local configuration storage
type Store interface {
	// Configurations
	CreateConfiguration(cfg *types.Configuration) error
	GetConfiguration(id string) (*types.Configuration, error)
	ListConfigurations() ([]*types.Configuration, error)
	UpdateConfiguration(cfg *types.Configuration) error
	DeleteConfiguration(id string) error

	// ReplaceConfigurations atomically swaps the whole configuration set
	ReplaceConfigurations(cfgs []*types.Configuration) error

	// Metadata
	GetMeta(key string) (string, error)
	SetMeta(key, value string) error

	// Utility
	Close() error
}
