package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"scrumboard/pkg/db"
)

func migrateCmd(a *app) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply every embedded migration not yet recorded in schema_migrations.

Examples:
  # Apply pending migrations
  boardctl migrate

  # Show the embedded migrations without connecting
  boardctl migrate --list
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				migrations, err := db.Migrations()
				if err != nil {
					return err
				}
				versions := make([]string, len(migrations))
				for i, m := range migrations {
					versions[i] = m.Version
				}
				return a.print(cmd.OutOrStdout(), map[string]any{"migrations": versions}, func(w io.Writer) {
					for _, v := range versions {
						fmt.Fprintln(w, v)
					}
				})
			}

			pool, err := a.db(cmd.Context())
			if err != nil {
				return err
			}
			applied, err := db.Migrate(cmd.Context(), pool, a.logger)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]any{"applied": applied}, func(w io.Writer) {
				if len(applied) == 0 {
					fmt.Fprintln(w, "Schema is up to date")
					return
				}
				for _, v := range applied {
					fmt.Fprintf(w, "Applied %s\n", v)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List embedded migrations and exit")
	return cmd
}
