package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vinoteka/internal/core/id"
)

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Delete one item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := id.Parse(args[1])
			if err != nil {
				return err
			}
			if !yes {
				return errors.New("refusing to delete without --yes")
			}

			ctx, m, _, err := a.manager(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Load(ctx); err != nil {
				return err
			}
			if err := m.RequestDelete(itemID); err != nil {
				return err
			}
			if err := m.ConfirmDelete(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %s %s\n", m.Def().Label, itemID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}
