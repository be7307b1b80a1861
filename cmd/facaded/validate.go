package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nerrad567/gray-logic-facade/internal/definition"
)

var errInvalidDefinition = errors.New("invalid definition")

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and the device definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(v)
			if err != nil {
				fmt.Fprintf(out, "✗ config: %v\n", err)
				return err
			}
			fmt.Fprintln(out, "✓ config")

			def, err := definition.Load(cfg.Facade.Definition)
			if err != nil {
				fmt.Fprintf(out, "✗ definition: %v\n", err)
				return err
			}
			if verrs := definition.Validate(def, definition.NewRegistry()); len(verrs) > 0 {
				for _, e := range verrs {
					fmt.Fprintf(out, "✗ %v\n", e)
				}
				return fmt.Errorf("%w: %s: %d error(s)", errInvalidDefinition, cfg.Facade.Definition, len(verrs))
			}

			dev, _, err := buildOffline(cfg)
			if err != nil {
				fmt.Fprintf(out, "✗ graph: %v\n", err)
				return fmt.Errorf("%w: %w", errInvalidDefinition, err)
			}
			fmt.Fprintf(out, "✓ definition %s: device %s, %d attribute(s)\n",
				cfg.Facade.Definition, dev.Name(), len(def.Attributes))
			return nil
		},
	}
}
