package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"scrumboard/internal/repository"
	"scrumboard/internal/service/board"
)

func boardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Check and repair issue ordering",
	}

	cmd.AddCommand(boardCheckCmd(a))
	cmd.AddCommand(boardNormalizeCmd(a))

	return cmd
}

func (a *app) boardService(cmd *cobra.Command) (board.Service, error) {
	pool, err := a.db(cmd.Context())
	if err != nil {
		return nil, err
	}
	return board.NewService(repository.NewIssueRepository(pool), repository.NewStatusRepository(pool), a.logger), nil
}

func boardCheckCmd(a *app) *cobra.Command {
	var sprintID string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "List columns whose orders are not 0..n-1",
		Long: `List the columns of a sprint whose issue orders have gaps or duplicates.

Examples:
  boardctl board check --sprint=6f1c2d8e-5a7b-4c3d-9e0f-112233445566
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.boardService(cmd)
			if err != nil {
				return err
			}
			violations, err := svc.Check(cmd.Context(), sprintID)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]any{"violations": violations}, func(w io.Writer) {
				if len(violations) == 0 {
					fmt.Fprintln(w, "Ordering is dense")
					return
				}
				for _, v := range violations {
					fmt.Fprintln(w, v.String())
				}
			})
		},
	}

	cmd.Flags().StringVar(&sprintID, "sprint", "", "Sprint id")
	_ = cmd.MarkFlagRequired("sprint")
	return cmd
}

func boardNormalizeCmd(a *app) *cobra.Command {
	var sprintID string

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Renumber every column of a sprint to 0..n-1",
		Long: `Renumber the issues of every column in a sprint, keeping their relative
order. Runs regardless of the sprint's status.

Examples:
  boardctl board normalize --sprint=6f1c2d8e-5a7b-4c3d-9e0f-112233445566
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.boardService(cmd)
			if err != nil {
				return err
			}
			res, err := svc.Normalize(cmd.Context(), sprintID)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "Renumbered %d issue(s)\n", len(res.Changed))
			})
		},
	}

	cmd.Flags().StringVar(&sprintID, "sprint", "", "Sprint id")
	_ = cmd.MarkFlagRequired("sprint")
	return cmd
}
