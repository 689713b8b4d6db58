package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"basegraph.app/boardroom/internal/model"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the roles and how each one is framed",
	Args:  cobra.NoArgs,
	RunE:  runPersonas,
}

func init() {
	rootCmd.AddCommand(personasCmd)
}

func runPersonas(cmd *cobra.Command, _ []string) error {
	catalog, err := loadPersonas("")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, role := range model.Roles {
		p := catalog.Get(role)
		fmt.Fprintf(out, "%s  %s\n    %s\n", role, p.Title, p.Instructions)
	}
	return nil
}
