package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rpattn/catalogaudit/internal/permission"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Increment permission versions so issued credentials go stale",
}

var invalidateUserCmd = &cobra.Command{
	Use:   "user <userId>...",
	Short: "Invalidate one or more users",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return runInvalidation(cmd, func(inv *permission.Invalidator) (int64, error) {
			if len(ids) == 1 {
				if err := inv.InvalidateUserPermissions(cmd.Context(), ids[0]); err != nil {
					return 0, err
				}
				return 1, nil
			}
			return inv.InvalidateMultipleUsersPermissions(cmd.Context(), ids)
		})
	},
}

var invalidateRoleCmd = &cobra.Command{
	Use:   "role <roleId>",
	Short: "Invalidate every user holding a role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return runInvalidation(cmd, func(inv *permission.Invalidator) (int64, error) {
			return inv.InvalidateRolePermissions(cmd.Context(), ids[0])
		})
	},
}

var invalidateGroupCmd = &cobra.Command{
	Use:   "permission-group <permissionGroupId>",
	Short: "Invalidate every user whose role includes a permission group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return runInvalidation(cmd, func(inv *permission.Invalidator) (int64, error) {
			return inv.InvalidatePermissionGroupPermissions(cmd.Context(), ids[0])
		})
	},
}

var invalidateAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Invalidate every user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInvalidation(cmd, func(inv *permission.Invalidator) (int64, error) {
			return inv.InvalidateAllPermissions(cmd.Context())
		})
	},
}

func init() {
	invalidateCmd.AddCommand(invalidateUserCmd)
	invalidateCmd.AddCommand(invalidateRoleCmd)
	invalidateCmd.AddCommand(invalidateGroupCmd)
	invalidateCmd.AddCommand(invalidateAllCmd)
}

func runInvalidation(cmd *cobra.Command, run func(*permission.Invalidator) (int64, error)) error {
	application, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	affected, err := run(application.Invalidator)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(map[string]int64{"usersInvalidated": affected})
	}
	fmt.Printf("invalidated %d user(s)\n", affected)
	return nil
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
