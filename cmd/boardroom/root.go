package main

import (
	"github.com/spf13/cobra"

	"basegraph.app/boardroom/internal/persona"
)

var rootCmd = &cobra.Command{
	Use:   "boardroom",
	Short: "Run executive discussions from the command line",
	Long: `boardroom runs a discussion between executive roles on a topic. Each role
speaks in turn and sees everything said before it.`,
	SilenceUsage: true,
}

var personasFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&personasFile, "personas", "", "persona catalog YAML (default: built-in, or PERSONAS_FILE)")
}

// loadPersonas prefers the flag, then the configured file, then the built-in catalog.
func loadPersonas(configured string) (*persona.Catalog, error) {
	path := personasFile
	if path == "" {
		path = configured
	}
	if path == "" {
		return persona.Default(), nil
	}
	return persona.Load(path)
}
