package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/wire/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file, with WIRE_* environment overrides applied,
without running anything.

Examples:
  wirectl validate -c wire.yml`,
	// Loading is the point of this command; skip the root hook so a broken
	// file is reported as INVALID instead of failing the pre-run.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(configFile, cmd.OutOrStdout())
	},
}

func runValidate(path string, w io.Writer) error {
	c, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(w, "INVALID: %v\n", err)
		return err
	}

	source := path
	if source == "" {
		source = "defaults"
	}
	_, err = fmt.Fprintf(w, "VALID: %s, log level %s, %d appender(s), %d hep server(s), tunnels %t\n",
		source, c.Log.Level, len(c.Log.Appenders), len(c.HEP.Servers), c.Decoder.DecodeTunnels)
	return err
}
