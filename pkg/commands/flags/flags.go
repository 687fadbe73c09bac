// Package flags provides the flags shared by slab's commands.
//
// Command-specific flags are defined next to their command.
package flags

import (
	"github.com/spf13/cobra"
)

// MustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func MustString(s string, _ error) string { return s }

// MustBool returns the bool value, ignoring the error.
// Safe to use with registered flags where GetBool cannot fail.
func MustBool(b bool, _ error) bool { return b }

// MustStringSlice returns the string slice value, ignoring the error.
// Safe to use with registered flags where GetStringSlice cannot fail.
func MustStringSlice(s []string, _ error) []string { return s }

// MustUint64 returns the uint64 value, ignoring the error.
// Safe to use with registered flags where GetUint64 cannot fail.
func MustUint64(n uint64, _ error) uint64 { return n }

// MustInt returns the int value, ignoring the error.
// Safe to use with registered flags where GetInt cannot fail.
func MustInt(n int, _ error) int { return n }

// Config adds the persistent --config/-c flag holding the path of the configuration file.
func Config(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", "slab.yaml", "Configuration file, env vars override it")
}

// JSON adds the persistent --json flag switching output from tables to JSON.
func JSON(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("json", false, "Print JSON instead of tables")
}

// Token adds the --token flag selecting an ERC-20 token by address. Empty means the native
// currency.
func Token(cmd *cobra.Command) {
	cmd.Flags().StringP("token", "t", "", "ERC-20 token address, native currency when empty")
}
