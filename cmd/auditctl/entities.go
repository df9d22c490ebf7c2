package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rpattn/catalogaudit/internal/domain"
)

var flagInactive bool

var entitiesCmd = &cobra.Command{
	Use:   "entities <entityType>",
	Short: "List registry records of one entity type, sorted by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType, err := domain.ParseEntityType(args[0])
		if err != nil {
			return err
		}
		application, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		records, err := application.Registry.GetEntitiesByType(cmd.Context(), entityType, !flagInactive)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(records)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCODE\tUPDATED")
		for _, record := range records {
			code := ""
			if record.EntityCode != nil {
				code = *record.EntityCode
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", record.EntityID, record.EntityName, code, record.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	entitiesCmd.Flags().BoolVar(&flagInactive, "inactive", false, "list deactivated records instead")
}
