package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fernandezvara/gamekit/hooks"
	"github.com/fernandezvara/gamekit/sqlfmt"
)

func queryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql> [args...]",
		Short: "Run one statement through the logged pool and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := loadApp(*configPath)
			if err != nil {
				return err
			}

			// The command prints the result itself.
			rt.cfg.Query.Console = false
			db, err := rt.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			query := args[0]
			values := make([]any, 0, len(args)-1)
			for _, a := range args[1:] {
				values = append(values, a)
			}

			if !returnsRows(query) {
				n, err := db.Connector().Exec(ctx, query, values...)
				if err != nil {
					return err
				}
				fmt.Printf("%d rows affected\n", n)
				return nil
			}

			res, err := db.Connector().Query(ctx, query, values...)
			if err != nil {
				return err
			}
			fmt.Println(sqlfmt.FormatTable(res.Columns, res.Rows))
			fmt.Printf("(%d rows)\n", len(res.Rows))
			return nil
		},
	}
}

// returnsRows guesses from the leading keyword whether query produces a
// result set. Writes with a RETURNING clause do.
func returnsRows(query string) bool {
	switch hooks.OperationType(query) {
	case "insert", "update", "delete":
		return strings.Contains(strings.ToUpper(query), " RETURNING ")
	case "create", "drop", "alter", "begin", "commit", "rollback", "savepoint", "release":
		return false
	default:
		return true
	}
}
