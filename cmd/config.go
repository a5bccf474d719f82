package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "github.com/KaramelBytes/querylens/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set QueryLens configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration (API keys redacted)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		shown := c.Redacted()
		return emit(cmd.OutOrStdout(), shown, func(w io.Writer) error {
			b, err := yaml.Marshal(shown)
			if err != nil {
				return fmt.Errorf("marshal yaml: %w", err)
			}
			_, err = w.Write(b)
			return err
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := cfgpkg.Set(c, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %s\n", args[0])
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := cfgpkg.Keys()
		return emit(cmd.OutOrStdout(), keys, func(w io.Writer) error {
			for _, k := range keys {
				fmt.Fprintln(w, k)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configKeysCmd)
}
