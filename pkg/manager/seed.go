package manager

import (
	"errors"
	"fmt"

	"github.com/cuemby/confsync/pkg/storage"
	"github.com/cuemby/confsync/pkg/types"
	"github.com/google/uuid"
)

// exampleConfigurations are inserted, disabled, on first start
var exampleConfigurations = []types.Configuration{
	{
		Name: "Example",
		Content: `; Replace words on any page
Inventory-Services = Stock-Services
Cart = Basket
$domain = example.com
`,
		Test: "Inventory-Services\nCart\nCART\nSan Francisco",
	},
	{
		Name: "Cities",
		Content: `; Swap one city for another
San Francisco = Berlin
Seattle = Hamburg
London = Munich
`,
		Test: "San Francisco\nSeattle\nLondon",
	},
}

// seed inserts the example configurations once, on a store that has never
// held any
func (m *Manager) seed() error {
	if _, err := m.store.GetMeta(metaSeeded); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	existing, err := m.store.ListConfigurations()
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		for _, example := range exampleConfigurations {
			cfg := example.Clone()
			cfg.ID = uuid.NewString()
			cfg.Values = map[string]string{}
			if err := m.ApplyAdd(cfg); err != nil {
				return fmt.Errorf("example %q: %w", cfg.Name, err)
			}
		}
		m.logger.Info().Int("count", len(exampleConfigurations)).Msg("Seeded example configurations")
	}

	return m.store.SetMeta(metaSeeded, "true")
}
