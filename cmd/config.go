package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := getConfig(); err != nil {
			return err
		}

		out, err := effectiveConfig()
		if err != nil {
			return err
		}

		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// effectiveConfig renders defaults, config file, environment and flags merged as YAML.
func effectiveConfig() ([]byte, error) {
	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	return out, nil
}
