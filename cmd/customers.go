package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "List customers in the configured data source",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("customers"); err != nil {
			return err
		}

		src, err := openSource(ctx)
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck

		customers, err := src.ListCustomers(ctx)
		if err != nil {
			return eris.Wrap(err, "customers: list")
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tINDUSTRY")
		for _, c := range customers {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c.CustomerID, c.CustomerName, c.Industry)
		}
		if err := tw.Flush(); err != nil {
			return eris.Wrap(err, "customers: write")
		}
		fmt.Printf("\n%d customers (%s)\n", len(customers), src.Name())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(customersCmd)
}
