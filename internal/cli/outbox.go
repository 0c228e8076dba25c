package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"scrumboard/pkg/mq"
	"scrumboard/pkg/outbox"
)

func outboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay outbox events",
	}

	cmd.AddCommand(outboxReplayCmd(a))
	cmd.AddCommand(outboxReplayFailedCmd(a))
	cmd.AddCommand(outboxRequeueCmd(a))

	return cmd
}

func (a *app) replayService(cmd *cobra.Command) (*outbox.ReplayService, func(), error) {
	pool, err := a.db(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	publisher, err := mq.NewPublisher(a.cfg.MQ.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to broker: %w", err)
	}
	return outbox.NewReplayService(outbox.NewRepository(pool), publisher, a.logger), publisher.Close, nil
}

func outboxReplayCmd(a *app) *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Publish one event immediately, whatever its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closePublisher, err := a.replayService(cmd)
			if err != nil {
				return err
			}
			defer closePublisher()

			if err := svc.ReplayEvent(cmd.Context(), id); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]any{"status": "replayed", "event_id": id}, func(w io.Writer) {
				fmt.Fprintf(w, "Replayed event %d\n", id)
			})
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "Outbox event id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func outboxReplayFailedCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "replay-failed",
		Short: "Publish failed events",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closePublisher, err := a.replayService(cmd)
			if err != nil {
				return err
			}
			defer closePublisher()

			n, err := svc.ReplayFailedEvents(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]any{"success_count": n, "limit": limit}, func(w io.Writer) {
				fmt.Fprintf(w, "Replayed %d failed event(s)\n", n)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum events to replay")
	return cmd
}

func outboxRequeueCmd(a *app) *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Reset an event to pending so the worker sends it again",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := a.db(cmd.Context())
			if err != nil {
				return err
			}
			if err := outbox.NewRepository(pool).ResetEvent(cmd.Context(), id); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]any{"status": "pending", "event_id": id}, func(w io.Writer) {
				fmt.Fprintf(w, "Event %d reset to pending\n", id)
			})
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "Outbox event id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
