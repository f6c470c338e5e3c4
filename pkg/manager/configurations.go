package manager

import (
	"fmt"

	"github.com/cuemby/confsync/pkg/events"
	"github.com/cuemby/confsync/pkg/types"
	"github.com/google/uuid"
)

// SaveConfiguration creates a record when cfg has no ID and replaces the
// record otherwise. Edits to connector-owned records are marked Pending so
// the next sync pushes them. The connector tag only changes through
// PublishConfiguration.
func (m *Manager) SaveConfiguration(cfg *types.Configuration) (*types.Configuration, error) {
	if cfg == nil || cfg.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidConfiguration)
	}

	next := cfg.Clone()
	if next.Values == nil {
		next.Values = map[string]string{}
	}

	if next.ID == "" {
		next.ID = uuid.NewString()
		next.Pending = next.Connector != ""
		if err := m.ApplyAdd(next); err != nil {
			return nil, err
		}
		return m.store.GetConfiguration(next.ID)
	}

	existing, err := m.store.GetConfiguration(next.ID)
	if err != nil {
		return nil, err
	}

	next.Connector = existing.Connector
	next.Pending = existing.Pending || existing.Connector != ""
	if err := m.ApplyUpdate(next.ID, next); err != nil {
		return nil, err
	}
	return m.store.GetConfiguration(next.ID)
}

// ToggleConfiguration sets the enabled flag of id, or flips it when enabled
// is nil
func (m *Manager) ToggleConfiguration(id string, enabled *bool) (*types.Configuration, error) {
	existing, err := m.store.GetConfiguration(id)
	if err != nil {
		return nil, err
	}

	next := existing.Clone()
	if enabled != nil {
		next.Enabled = *enabled
	} else {
		next.Enabled = !existing.Enabled
	}
	if next.Enabled == existing.Enabled {
		return existing, nil
	}
	if next.Connector != "" {
		next.Pending = true
	}

	if err := m.ApplyUpdate(id, next); err != nil {
		return nil, err
	}

	m.Publish(&events.Event{
		Type:    events.EventConfigurationToggled,
		Message: fmt.Sprintf("%s %s", events.EventConfigurationToggled, next.Name),
		Metadata: map[string]string{
			"id":      id,
			"name":    next.Name,
			"enabled": fmt.Sprintf("%t", next.Enabled),
		},
	})

	return m.store.GetConfiguration(id)
}

// DeleteConfiguration removes a record locally. A connector-owned record
// comes back on the next download unless it is also removed remotely.
func (m *Manager) DeleteConfiguration(id string) error {
	return m.ApplyDelete(id)
}

// PublishConfiguration hands a record to connector. The record is marked
// Pending so the next sync uploads it.
func (m *Manager) PublishConfiguration(id, connector string) (*types.Configuration, error) {
	if connector == "" {
		return nil, fmt.Errorf("%w: connector is required", ErrInvalidConfiguration)
	}

	existing, err := m.store.GetConfiguration(id)
	if err != nil {
		return nil, err
	}
	if existing.Connector == connector {
		return existing, nil
	}

	next := existing.Clone()
	next.Connector = connector
	next.Pending = true

	if err := m.ApplyUpdate(id, next); err != nil {
		return nil, err
	}
	return m.store.GetConfiguration(id)
}
