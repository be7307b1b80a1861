// Command facaded serves a facade device over MQTT and HTTP.
//
// A facade device exposes attributes computed from remote readings,
// local values and rules, described in a YAML or TOML definition file.
//
//	facaded run --config configs/facade.yaml
//	facaded validate --definition configs/boiler.toml
//	facaded graph --definition configs/boiler.toml --format dot
//	facaded history --attribute temperature --since 1h
//	facaded token --subject dashboard --role operator
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "facaded",
		Short: "Gray Logic facade device service",
		Long: `facaded aggregates remote readings into the attributes of a facade device.
Readings arrive over MQTT; every attribute change is published back to MQTT
and optionally recorded to SQLite history, InfluxDB and OpenTelemetry.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "service configuration file (env FACADE_CONFIG)")
	flags.String("definition", "", "device definition file, overrides facade.definition (env FACADE_DEFINITION)")
	_ = v.BindPFlag("config", flags.Lookup("config"))
	_ = v.BindPFlag("definition", flags.Lookup("definition"))
	v.SetEnvPrefix("FACADE")
	v.AutomaticEnv()

	root.AddCommand(
		newRunCmd(v),
		newValidateCmd(v),
		newGraphCmd(v),
		newHistoryCmd(v),
		newTokenCmd(v),
	)
	return root
}
