package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpattn/catalogaudit/internal/auth"
	"github.com/rpattn/catalogaudit/internal/domain"
)

var flagRepair bool

var checkLinksCmd = &cobra.Command{
	Use:   "check-links",
	Short: "Report category/family references that do not point at each other",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		ctx := auth.ContextWithUserID(cmd.Context(), auth.SystemUserID)
		var report domain.ConsistencyReport
		if flagRepair {
			report, err = application.Checker.CheckAndRepair(ctx)
		} else {
			report, err = application.Checker.Check(ctx)
		}
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(report)
		}
		fmt.Printf("scanned %d categories, %d families\n", report.CategoriesScanned, report.FamiliesScanned)
		for _, violation := range report.Violations {
			fmt.Printf("  %-26s %s\n", violation.Kind, violation.Detail)
		}
		if flagRepair {
			fmt.Printf("repairs: %d attempted, %d succeeded\n", report.RepairsAttempted, report.RepairsSucceeded)
		}
		if report.Consistent() {
			fmt.Println("all links consistent")
		}
		return nil
	},
}

func init() {
	checkLinksCmd.Flags().BoolVar(&flagRepair, "repair", false, "resynchronize every violating pair")
}
