package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cuemby/confsync/pkg/client"
	"github.com/cuemby/confsync/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply configurations from a YAML file",
	Long: `Create or update configurations from a YAML file.

Records are matched by name: an existing configuration with the same name is
replaced, anything else is created. The file may hold several documents.

Example:
  configurations:
    - name: Cities
      content: |
        paris => Paris
      enabled: true
      values:
        lang: fr
      publish: true

  confsync apply -f cities.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// ConfigurationFile is one YAML document accepted by apply
type ConfigurationFile struct {
	Configurations []ConfigurationEntry `yaml:"configurations"`
}

// ConfigurationEntry is a configuration as written by hand
type ConfigurationEntry struct {
	Name    string            `yaml:"name"`
	Content string            `yaml:"content"`
	Test    string            `yaml:"test,omitempty"`
	Enabled bool              `yaml:"enabled"`
	Values  map[string]string `yaml:"values,omitempty"`
	Hotkeys []int             `yaml:"hotkeys,omitempty"`

	// Publish hands the record to the daemon's active connector
	Publish bool `yaml:"publish,omitempty"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	entries, err := parseConfigurationFile(f)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no configurations in %s", filename)
	}

	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	return applyConfigurations(c, entries)
}

func parseConfigurationFile(r io.Reader) ([]ConfigurationEntry, error) {
	var entries []ConfigurationEntry

	dec := yaml.NewDecoder(r)
	for {
		var doc ConfigurationFile
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}

		for _, entry := range doc.Configurations {
			if entry.Name == "" {
				return nil, fmt.Errorf("configuration without a name")
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

func applyConfigurations(c *client.Client, entries []ConfigurationEntry) error {
	existing, err := c.ListConfigurations()
	if err != nil {
		return fmt.Errorf("failed to list configurations: %w", err)
	}

	byName := make(map[string]*types.Configuration, len(existing))
	for _, cfg := range existing {
		if _, ok := byName[cfg.Name]; !ok {
			byName[cfg.Name] = cfg
		}
	}

	for _, entry := range entries {
		cfg := &types.Configuration{
			Name:    entry.Name,
			Content: entry.Content,
			Test:    entry.Test,
			Enabled: entry.Enabled,
			Values:  entry.Values,
			Hotkeys: entry.Hotkeys,
		}

		verb := "created"
		if current, ok := byName[entry.Name]; ok {
			cfg.ID = current.ID
			verb = "updated"
		}

		saved, err := c.SaveConfiguration(cfg)
		if err != nil {
			return fmt.Errorf("failed to apply %q: %w", entry.Name, err)
		}
		fmt.Printf("✓ Configuration %q %s (%s)\n", saved.Name, verb, saved.ID)

		if entry.Publish && saved.Connector == "" {
			published, err := c.PublishConfiguration(saved.ID, "")
			if err != nil {
				return fmt.Errorf("failed to publish %q: %w", entry.Name, err)
			}
			fmt.Printf("  published to %s\n", published.Connector)
		}
	}

	return nil
}
