package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/sevenday/challenge/server/model"
	"github.com/sevenday/challenge/server/quest"
	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Quest catalog tools",
	}
	catalogCmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Load and validate a quest catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := quest.LoadCatalog(args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tQUESTS\tPOINTS\tARTIFACTS")
			for _, c := range model.Categories {
				qs := cat.ByCategory(c)
				pts := 0
				for _, q := range qs {
					pts += q.Points
				}
				arts := 0
				for _, a := range cat.Artifacts() {
					if a.Category == c {
						arts++
					}
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", c, len(qs), pts, arts)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d quests, %d artifacts\n", len(cat.Quests()), len(cat.Artifacts()))
			return nil
		},
	})
	return catalogCmd
}
