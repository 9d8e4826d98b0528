package main

import (
	"fmt"

	"github.com/spf13/cobra"

	sparkleserver "github.com/HendryAvila/sparkle/internal/server"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "sparkle v%s\n", sparkleserver.Version)
			return err
		},
	}
}
