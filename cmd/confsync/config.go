package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cuemby/confsync/pkg/types"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"configuration"},
	Short:   "Manage configurations",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configurations",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		cfgs, err := c.ListConfigurations()
		if err != nil {
			return fmt.Errorf("failed to list configurations: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cfgs)
		}

		if len(cfgs) == 0 {
			fmt.Println("No configurations")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tENABLED\tCONNECTOR\tPENDING\tUPDATED")
		for _, cfg := range cfgs {
			owner := cfg.Connector
			if owner == "" {
				owner = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%t\t%s\n",
				cfg.ID, cfg.Name, cfg.Enabled, owner, cfg.Pending,
				cfg.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var configAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a local configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := contentFromFlags(cmd)
		if err != nil {
			return err
		}
		enabled, _ := cmd.Flags().GetBool("enabled")
		values, _ := cmd.Flags().GetStringToString("value")

		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		saved, err := c.SaveConfiguration(&types.Configuration{
			Name:    args[0],
			Content: content,
			Enabled: enabled,
			Values:  values,
		})
		if err != nil {
			return fmt.Errorf("failed to create configuration: %w", err)
		}

		fmt.Printf("✓ Configuration created: %s (%s)\n", saved.Name, saved.ID)
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Replace the content or name of a configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		cfg, err := findConfiguration(c.ListConfigurations, args[0])
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("content") || cmd.Flags().Changed("content-file") {
			if cfg.Content, err = contentFromFlags(cmd); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("name") {
			cfg.Name, _ = cmd.Flags().GetString("name")
		}
		if cmd.Flags().Changed("value") {
			cfg.Values, _ = cmd.Flags().GetStringToString("value")
		}

		saved, err := c.SaveConfiguration(cfg)
		if err != nil {
			return fmt.Errorf("failed to update configuration: %w", err)
		}

		fmt.Printf("✓ Configuration updated: %s\n", saved.Name)
		if saved.Pending {
			fmt.Printf("  pending upload to %s\n", saved.Connector)
		}
		return nil
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.DeleteConfiguration(args[0]); err != nil {
			return fmt.Errorf("failed to delete configuration: %w", err)
		}
		fmt.Printf("✓ Configuration deleted: %s\n", args[0])
		return nil
	},
}

var configToggleCmd = &cobra.Command{
	Use:   "toggle ID",
	Short: "Enable or disable a configuration",
	Long:  `Flip the enabled flag of a configuration, or set it with --on/--off.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		on, _ := cmd.Flags().GetBool("on")
		off, _ := cmd.Flags().GetBool("off")
		if on && off {
			return fmt.Errorf("--on and --off are mutually exclusive")
		}

		var enabled *bool
		if on || off {
			enabled = &on
		}

		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.ToggleConfiguration(args[0], enabled); err != nil {
			return fmt.Errorf("failed to toggle configuration: %w", err)
		}
		fmt.Printf("✓ Configuration toggled: %s\n", args[0])
		return nil
	},
}

var configPublishCmd = &cobra.Command{
	Use:   "publish ID",
	Short: "Hand a local configuration to a connector",
	Long: `Hand a local configuration to a connector. The record is uploaded on the
next sync and follows the remote from then on.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("connector")

		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		published, err := c.PublishConfiguration(args[0], target)
		if err != nil {
			return fmt.Errorf("failed to publish configuration: %w", err)
		}
		fmt.Printf("✓ Configuration %s published to %s\n", published.Name, published.Connector)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configAddCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configDeleteCmd)
	configCmd.AddCommand(configToggleCmd)
	configCmd.AddCommand(configPublishCmd)

	configListCmd.Flags().Bool("json", false, "Print configurations as JSON")

	for _, cmd := range []*cobra.Command{configAddCmd, configEditCmd} {
		cmd.Flags().String("content", "", "Configuration content")
		cmd.Flags().String("content-file", "", "Read configuration content from a file")
		cmd.Flags().StringToString("value", nil, "Template value (key=value, repeatable)")
	}
	configAddCmd.Flags().Bool("enabled", false, "Enable the configuration")
	configEditCmd.Flags().String("name", "", "New name")

	configToggleCmd.Flags().Bool("on", false, "Enable the configuration")
	configToggleCmd.Flags().Bool("off", false, "Disable the configuration")

	configPublishCmd.Flags().String("connector", "", "Target connector (defaults to the daemon's remote)")
}

func contentFromFlags(cmd *cobra.Command) (string, error) {
	content, _ := cmd.Flags().GetString("content")
	path, _ := cmd.Flags().GetString("content-file")
	if content != "" && path != "" {
		return "", fmt.Errorf("--content and --content-file are mutually exclusive")
	}
	if path == "" {
		return content, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read content file: %w", err)
	}
	return string(data), nil
}

// findConfiguration resolves id, or a unique ID prefix as printed by list
func findConfiguration(list func() ([]*types.Configuration, error), id string) (*types.Configuration, error) {
	cfgs, err := list()
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}

	var matches []*types.Configuration
	for _, cfg := range cfgs {
		if cfg.ID == id {
			return cfg, nil
		}
		if strings.HasPrefix(cfg.ID, id) {
			matches = append(matches, cfg)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("configuration not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous configuration id %q (%d matches)", id, len(matches))
	}
}
