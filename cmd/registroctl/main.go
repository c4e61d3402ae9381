// Command registroctl checks, encodes and submits distributor registrations
// described in YAML files, through the same rules and transport the wizard
// uses.
//
// Usage:
//
//	registroctl check dpi_frontal=frente.jpg rtu=rtu.pdf
//	registroctl encode registro.yaml
//	registroctl submit registro.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/registro/internal/core"
	"github.com/JonMunkholm/registro/internal/locations"
	"github.com/JonMunkholm/registro/internal/logging"
	"github.com/JonMunkholm/registro/internal/wizard"
)

var (
	documentsFile string
	locationsFile string
	logLevel      string
)

var rootCmd = &cobra.Command{
	Use:           "registroctl",
	Short:         "Operate on distributor registrations from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// stdout carries command output; logs go to stderr.
		slog.SetDefault(logging.New(os.Stderr, logLevel, "text"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&documentsFile, "documents-file", os.Getenv("DOCUMENTS_FILE"), "Document registry YAML (default: embedded)")
	rootCmd.PersistentFlags().StringVar(&locationsFile, "locations-file", os.Getenv("LOCATIONS_FILE"), "Locations catalog YAML (default: embedded)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(submitCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func loadRegistry() (*core.Registry, error) {
	if documentsFile != "" {
		return core.LoadRegistryFile(documentsFile)
	}
	return core.DefaultRegistry()
}

// loadRules builds the wizard rules from the registry and catalog flags.
func loadRules() (*wizard.Rules, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}

	var cat *locations.Catalog
	if locationsFile != "" {
		cat, err = locations.LoadFile(locationsFile)
	} else {
		cat, err = locations.Default()
	}
	if err != nil {
		return nil, err
	}
	return wizard.NewRules(reg, cat), nil
}
