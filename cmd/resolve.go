package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <commune>",
	Short: "Resolve a postal code or commune name to coordinates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSearch(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		coords, err := env.Service.Resolve(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "resolve")
		}
		if coords == nil {
			fmt.Fprintf(os.Stderr, "Could not resolve %q.\n", args[0])
			return nil
		}

		insee, _ := cmd.Flags().GetBool("insee")
		if insee {
			communes, err := env.Resolver.ResolveInsee(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "resolve insee")
			}
			for _, c := range communes {
				fmt.Fprintf(os.Stderr, "INSEE %s  %s\n", c.Insee, c.Name)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(coords)
	},
}

func init() {
	resolveCmd.Flags().Bool("insee", false, "also print the INSEE codes a legacy search would use")
	rootCmd.AddCommand(resolveCmd)
}
