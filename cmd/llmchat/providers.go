package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProvidersCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(global)
			if err != nil {
				return err
			}
			defer a.close()

			def := a.factory.DefaultProvider()
			for _, name := range a.factory.ListProviders() {
				marker := " "
				if name == def {
					marker = "*"
				}
				status := "defaults"
				if _, ok := a.cfg.ProviderConfig(name); ok {
					status = "configured"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-14s %s\n", marker, name, status)
			}
			return nil
		},
	}
}
