package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"vinoteka/internal/core/id"
	"vinoteka/internal/domain/entitymgr"
	"vinoteka/internal/domain/reference"
	"vinoteka/internal/infrastructure/catalogapi"
	"vinoteka/internal/metadata"
)

func newListCmd(a *app) *cobra.Command {
	var (
		search string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "List or search the items of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, m, client, err := a.manager(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer m.Close()

			if search != "" {
				triggered, err := m.Search(ctx, search)
				if err != nil {
					return err
				}
				if !triggered {
					return fmt.Errorf("search needs at least %d characters", entitymgr.MinSearchLen)
				}
			} else if err := m.Load(ctx); err != nil {
				return err
			}

			items := m.View().Items
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}

			resolver := reference.NewResolver(client, time.Minute, a.log)
			opts, err := resolver.Resolve(ctx, m.Def())
			if err != nil {
				a.log.Warnw("option labels unavailable", "error", err)
			}
			return a.printTable(m.Def(), items, opts, client)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "server-side search text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw records as JSON")
	return cmd
}

func (a *app) printTable(def metadata.EntityDef, items []entitymgr.Record, opts map[string]reference.Options, client *catalogapi.Client) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	header := make([]string, len(def.Columns))
	for i, col := range def.Columns {
		header[i] = strings.ToUpper(col)
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, item := range items {
		cells := make([]string, len(def.Columns))
		for i, col := range def.Columns {
			v, _ := item.Get(col)
			cells[i] = cell(def, col, v, opts, client)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d %s\n", len(items), def.Name)
	return nil
}

func cell(def metadata.EntityDef, col string, v any, opts map[string]reference.Options, client *catalogapi.Client) string {
	if v == nil {
		return ""
	}
	f, ok := def.Field(col)
	if !ok {
		return fmt.Sprint(v)
	}
	switch f.Type {
	case metadata.TypeSelect:
		if vid, ok := id.FromAny(v); ok {
			return opts[f.Name].Label(vid)
		}
	case metadata.TypeBoolean:
		if b, _ := v.(bool); b {
			return "yes"
		}
		return "no"
	case metadata.TypeImage:
		if s, _ := v.(string); s != "" {
			return client.ImageURL(s)
		}
		return ""
	}
	return fmt.Sprint(v)
}
