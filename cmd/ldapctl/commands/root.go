// Package commands implements the ldapctl command line.
package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/isometry/ldapctl/internal/cli/output"
	"github.com/isometry/ldapctl/internal/config"
	"github.com/isometry/ldapctl/internal/ldap"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile      string
	appPrefix    string
	outputFormat string
	logLevel     string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ldapctl",
	Short: "ldapctl - thin LDAP directory client",
	Long: `ldapctl reads, writes and reconciles entries in an LDAP directory.

Every command opens its own connection, binds with the configured service
credentials, performs one operation and unbinds.

Configuration is read from <PREFIX>_LDAP_* environment variables
(for example LDAPCTL_LDAP_SERVER_URI) and an optional config file.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: preRun,
}

// Execute adds all child commands to the root command and runs it.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/ldapctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&appPrefix, "prefix", config.DefaultPrefix, "environment variable prefix")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error, off)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(modifyCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(modifyUserCmd)
	rootCmd.AddCommand(passwdCmd)
	rootCmd.AddCommand(batchCmd)
}

func preRun(cmd *cobra.Command, _ []string) error {
	if _, err := output.ParseFormat(outputFormat); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(setupLogging(ctx, logLevel, strings.ToUpper(appPrefix)))
	return nil
}

// loadDirectory reads the configuration and returns a Directory for it.
func loadDirectory() (*ldap.Directory, error) {
	cfg, err := config.Load(cfgFile, appPrefix)
	if err != nil {
		return nil, err
	}
	return ldap.NewDirectory(cfg), nil
}

// printResult writes data in the selected output format.
func printResult(data any) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return output.Print(os.Stdout, format, data)
}

// printSuccess prints msg for table output only.
func printSuccess(format string, args ...any) {
	if f, _ := output.ParseFormat(outputFormat); f != output.FormatTable {
		return
	}
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}
