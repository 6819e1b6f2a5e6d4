package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fernandezvara/gamekit/game"
)

func migrateCmd(configPath *string) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the game schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := loadApp(*configPath)
			if err != nil {
				return err
			}

			// Only the migration outcome is interesting here.
			rt.cfg.Query.Log = false
			db, err := rt.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			migrations := game.Migrations(db.Dialect().Name())

			if status {
				entries, err := db.MigrationStatus(ctx, migrations)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tDESCRIPTION\tSTATE")
				for _, e := range entries {
					state := "pending"
					switch {
					case e.Applied && !e.ChecksumMatch:
						state = "modified"
					case e.Applied:
						state = "applied"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.Description, state)
				}
				return w.Flush()
			}

			res, err := db.Migrate(ctx, migrations)
			if err != nil {
				return err
			}
			for _, m := range res.Applied {
				fmt.Printf("applied %s %s (%s)\n", m.ID, m.Description, m.Duration)
			}
			fmt.Printf("%d applied, %d already up to date in %s\n", len(res.Applied), len(res.Skipped), res.TotalTime)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "show migration state without applying")

	return cmd
}
