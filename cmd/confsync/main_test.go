package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/cuemby/confsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigurationFile(t *testing.T) {
	input := `
configurations:
  - name: Cities
    content: |
      paris => Paris
    enabled: true
    values:
      lang: fr
    publish: true
---
configurations:
  - name: Example
    content: a => b
    hotkeys: [17, 65]
`
	entries, err := parseConfigurationFile(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Cities", entries[0].Name)
	assert.Equal(t, "paris => Paris\n", entries[0].Content)
	assert.True(t, entries[0].Enabled)
	assert.True(t, entries[0].Publish)
	assert.Equal(t, map[string]string{"lang": "fr"}, entries[0].Values)

	assert.Equal(t, "Example", entries[1].Name)
	assert.False(t, entries[1].Publish)
	assert.Equal(t, []int{17, 65}, entries[1].Hotkeys)
}

func TestParseConfigurationFileErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "missing name", input: "configurations:\n  - content: x\n"},
		{name: "invalid yaml", input: "configurations: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfigurationFile(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestFindConfiguration(t *testing.T) {
	cfgs := []*types.Configuration{
		{ID: "abc123", Name: "A"},
		{ID: "abd456", Name: "B"},
		{ID: "ab", Name: "C"},
	}
	list := func() ([]*types.Configuration, error) { return cfgs, nil }

	tests := []struct {
		name     string
		id       string
		expected string
		wantErr  bool
	}{
		{name: "exact id", id: "abd456", expected: "B"},
		{name: "exact id that is also a prefix", id: "ab", expected: "C"},
		{name: "unique prefix", id: "abc", expected: "A"},
		{name: "ambiguous prefix", id: "a", wantErr: true},
		{name: "unknown", id: "zzz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := findConfiguration(list, tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.Name)
		})
	}
}

func TestFindConfigurationListError(t *testing.T) {
	_, err := findConfiguration(func() ([]*types.Configuration, error) {
		return nil, errors.New("unavailable")
	}, "x")
	assert.ErrorContains(t, err, "unavailable")
}

func TestConfigToggleArgs(t *testing.T) {
	assert.Error(t, configToggleCmd.Args(configToggleCmd, nil))
	assert.NoError(t, configToggleCmd.Args(configToggleCmd, []string{"abc"}))
	assert.Error(t, configToggleCmd.Args(configToggleCmd, []string{"a", "b"}))
	assert.Contains(t, configToggleCmd.Long, "--on/--off")
}
