// Package cmd implements the fieldparty command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"fieldparty/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute runs the command line with the process arguments.
func Execute() error {
	return Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes one invocation against a fresh runtime. Handles opened by the
// command are released before Run returns.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := newApp()
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fieldparty",
		Short: "Collaborative field session state manager",
		Long: `fieldparty manages parties and routes shared between field users.

Every mutation is applied under a per-session lock and written with an
optimistic version check, so concurrent joins, shares and waypoints are
never lost.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}

	// Global flags
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is $HOME/.config/fieldparty/config.yaml)")

	root.AddCommand(
		a.partyCmd(),
		a.routeCmd(),
		a.snapshotCmd(),
		a.simulateCmd(),
		a.configCmd(),
	)
	return root
}

func (a *app) initConfig() error {
	// Set defaults first so they're available even without a config file
	config.SetDefaultsOn(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(config.ConfigDir())
		a.v.AddConfigPath(".")
	}

	a.v.AutomaticEnv()
	a.v.SetEnvPrefix(config.EnvPrefix)
	// e.g. FIELDPARTY_STORAGE_DRIVER for storage.driver
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := config.LoadFrom(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}
