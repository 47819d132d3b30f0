package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "thermostat-settings",
	Short: "Packet thermostat installation tool",
	Long: `thermostat-settings configures a packet thermostat for a particular set of
furnace signal wires, either over its serial console or by printing the
command script to stdout. It can also decode a stored settings image.`,
	SilenceUsage: true,
}
