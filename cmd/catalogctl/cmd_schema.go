package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vinoteka/internal/metadata"
)

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect entity schemas",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "lint [dir]",
			Short: "Validate the YAML schemas of a directory",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				dir := a.v.GetString(keySchemaDir)
				if len(args) == 1 {
					dir = args[0]
				}
				return a.lint(dir)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List every registered entity",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.listSchemas()
			},
		},
	)
	return cmd
}

// lint loads dir and reports each definition. Files shadowed by a
// struct model are reported but not an error.
func (a *app) lint(dir string) error {
	defs, err := metadata.LoadDir(dir)
	if err != nil {
		return err
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, def := range defs {
		status := "ok"
		if cur, ok := reg.Get(def.Name); ok && cur.Source == metadata.SourceStruct {
			status = "shadowed by struct model"
		}
		fmt.Fprintf(w, "%s\t%s\t%d field(s)\t%s\n", def.Name, def.Collection, len(def.Fields), status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d schema(s) valid in %s\n", len(defs), dir)
	return nil
}

func (a *app) listSchemas() error {
	reg, err := a.registry()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLABEL\tCOLLECTION\tSOURCE")
	for _, def := range reg.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.Name, def.Label, def.Collection, def.Source)
	}
	return w.Flush()
}
