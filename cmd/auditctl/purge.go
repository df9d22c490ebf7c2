package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rpattn/catalogaudit/internal/app"
	"github.com/rpattn/catalogaudit/internal/domain"
)

var flagRegistryType string

var purgeHistoryCmd = &cobra.Command{
	Use:   "purge-history <entityId>",
	Short: "Delete every history record referencing an entity",
	Long: `Delete every history record where the entity is the primary or an affected entity.
With --registry <entityType> the entity's registry record is removed as well.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid entity id: %w", err)
		}
		var registryType domain.EntityType
		if flagRegistryType != "" {
			registryType, err = domain.ParseEntityType(flagRegistryType)
			if err != nil {
				return err
			}
		}

		application, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		// History and registry go together or not at all.
		var removed int64
		registryRemoved := false
		err = application.InTx(cmd.Context(), func(services app.Services) error {
			removed, err = services.Ledger.DeleteEntityHistory(cmd.Context(), entityID)
			if err != nil {
				return err
			}
			if registryType != "" {
				if err := services.Registry.DeleteEntity(cmd.Context(), entityID, registryType); err != nil {
					return fmt.Errorf("failed to delete registry record: %w", err)
				}
				registryRemoved = true
			}
			return nil
		})
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(map[string]any{"entityId": entityID, "removed": removed, "registryRemoved": registryRemoved})
		}
		fmt.Printf("removed %d history record(s)\n", removed)
		if registryRemoved {
			fmt.Printf("removed registry record %s\n", domain.EntityKey(entityID, registryType))
		}
		return nil
	},
}

func init() {
	purgeHistoryCmd.Flags().StringVar(&flagRegistryType, "registry", "", "also delete the registry record of this entity type")
}
