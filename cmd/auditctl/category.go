package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagHard    bool
	flagComment string
)

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Delete or restore categories with full audit side effects",
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete <categoryId>",
	Short: "Soft-delete a category, or remove it and purge its history with --hard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid category id: %w", err)
		}
		application, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		// No user on the context: the writes are attributed to the system user.
		if err := application.Catalog.DeleteCategory(cmd.Context(), id, flagHard, commentFlag()); err != nil {
			return err
		}
		if flagJSON {
			return printJSON(map[string]any{"categoryId": id, "hard": flagHard})
		}
		if flagHard {
			fmt.Printf("deleted category %s and purged its history\n", id)
		} else {
			fmt.Printf("deactivated category %s\n", id)
		}
		return nil
	},
}

var categoryRestoreCmd = &cobra.Command{
	Use:   "restore <categoryId>",
	Short: "Reactivate a soft-deleted category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid category id: %w", err)
		}
		application, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		category, err := application.Catalog.RestoreCategory(cmd.Context(), id, commentFlag())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(category)
		}
		fmt.Printf("restored category %s (%s)\n", category.ID, category.Name)
		return nil
	},
}

func commentFlag() *string {
	if flagComment == "" {
		return nil
	}
	return &flagComment
}

func init() {
	categoryCmd.PersistentFlags().StringVar(&flagComment, "comment", "", "comment stored on the history records")
	categoryDeleteCmd.Flags().BoolVar(&flagHard, "hard", false, "remove the document and purge its history")
	categoryCmd.AddCommand(categoryDeleteCmd, categoryRestoreCmd)
}
