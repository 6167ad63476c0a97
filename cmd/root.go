// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/wire/internal/config"
	"firestige.xyz/wire/internal/log"
)

var (
	// Global flags
	configFile string

	// cfg is loaded by the root PersistentPreRunE.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wirectl",
	Short: "wirectl - decode, build and forward packets",
	Long: `wirectl works on captured traffic with bounds-checked packet codecs.
It decodes Ethernet/VLAN/IPv4/IPv6/TCP/UDP frames and common tunnels from
pcap and pcapng files, builds test captures, annotates RTP and RTCP, and
encodes packets as HEPv3 frames for HOMER-compatible collectors.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and WIRE_* environment when empty)")

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(hepCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig(_ *cobra.Command, _ []string) error {
	c, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := log.Init(&c.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	cfg = c
	return nil
}
