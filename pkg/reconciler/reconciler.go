package reconciler

import (
	"sort"

	"github.com/cuemby/confsync/pkg/types"
)

// IDFunc generates identifiers for records added from remote data
type IDFunc func() string

// Reconcile computes the intents that converge the records owned by connector
// onto the remote snapshot.
//
// A nil snapshot means the fetch produced no data and yields no intents.
// Records owned by other connectors, or by none, never appear in the result.
func Reconcile(connector string, local []*types.Configuration, snapshot *types.RemoteSnapshot, newID IDFunc) []types.Intent {
	if snapshot == nil || connector == "" {
		return nil
	}

	owned := ownedBy(connector, local)

	// First record per name is the match; later duplicates fall out of keep
	byName := make(map[string]*types.Configuration, len(owned))
	for _, c := range owned {
		if _, exists := byName[c.Name]; !exists {
			byName[c.Name] = c
		}
	}

	var intents []types.Intent
	keep := make(map[string]bool, len(owned))

	for _, name := range sortedNames(snapshot) {
		remote := snapshot.Records[name]

		existing, found := byName[name]
		if !found {
			intents = append(intents, types.Intent{
				Kind:          types.IntentAdd,
				Configuration: newConfiguration(connector, name, remote, newID),
			})
			continue
		}

		keep[existing.ID] = true
		if existing.Content != remote.Content {
			intents = append(intents, types.Intent{
				Kind:          types.IntentUpdate,
				ID:            existing.ID,
				Configuration: merge(existing, remote),
			})
		}
	}

	for _, c := range owned {
		if !keep[c.ID] {
			intents = append(intents, types.Intent{
				Kind: types.IntentDelete,
				ID:   c.ID,
			})
		}
	}

	return intents
}

// ownedBy filters local records down to the ones tagged with connector
func ownedBy(connector string, local []*types.Configuration) []*types.Configuration {
	var owned []*types.Configuration
	for _, c := range local {
		if c != nil && c.IsOwnedBy(connector) {
			owned = append(owned, c)
		}
	}
	return owned
}

func sortedNames(snapshot *types.RemoteSnapshot) []string {
	names := make([]string, 0, len(snapshot.Records))
	for name := range snapshot.Records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newConfiguration builds a local record from a remote one
func newConfiguration(connector, name string, remote types.RemoteRecord, newID IDFunc) *types.Configuration {
	c := &types.Configuration{
		ID:        newID(),
		Name:      name,
		Content:   remote.Content,
		Test:      remote.Test,
		Connector: connector,
	}
	if remote.Enabled != nil {
		c.Enabled = *remote.Enabled
	}
	if remote.Values != nil {
		c.Values = copyValues(remote.Values)
	} else {
		c.Values = map[string]string{}
	}
	if remote.Hotkeys != nil {
		c.Hotkeys = append([]int(nil), remote.Hotkeys...)
	}
	return c
}

// merge overlays remote fields onto a copy of the local record. Content and
// test text always come from the remote, an empty test included. The optional
// fields are taken only when the remote carries them. ID and connector tag
// stay local.
func merge(local *types.Configuration, remote types.RemoteRecord) *types.Configuration {
	merged := local.Clone()
	merged.Content = remote.Content
	merged.Test = remote.Test
	merged.Pending = false

	if remote.Enabled != nil {
		merged.Enabled = *remote.Enabled
	}
	if remote.Values != nil {
		merged.Values = copyValues(remote.Values)
	}
	if remote.Hotkeys != nil {
		merged.Hotkeys = append([]int(nil), remote.Hotkeys...)
	}
	return merged
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
