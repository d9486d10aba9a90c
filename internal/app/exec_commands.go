package app

import (
	"github.com/nmorales/agentexec/internal/engine"
	clierr "github.com/nmorales/agentexec/internal/errors"
	"github.com/nmorales/agentexec/internal/model"
	"github.com/spf13/cobra"
)

func (s *runtimeState) newExecCommand() *cobra.Command {
	root := &cobra.Command{Use: "exec", Short: "Inspect stored executions"}
	root.AddCommand(s.newExecGetCommand())
	root.AddCommand(s.newExecListCommand())
	root.AddCommand(s.newExecRefundCommand())
	return root
}

func (s *runtimeState) newExecGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <execution-id>",
		Short: "Show a stored execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := s.store.Get(args[0])
			if err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "load execution", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), state, nil)
		},
	}
}

func (s *runtimeState) newExecListCommand() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := s.store.List(status, limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "list executions", err)
			}
			summaries := make([]model.ExecutionSummary, 0, len(states))
			for _, state := range states {
				summaries = append(summaries, model.ExecutionSummary{
					ExecutionID: state.ExecutionID,
					Status:      state.StatusLabel(),
					CurrentStep: state.CurrentStep,
					Steps:       len(state.Steps),
					Error:       state.Error,
					CreatedAt:   state.CreatedAt,
					UpdatedAt:   state.UpdatedAt,
				})
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), summaries, nil)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (running|completed|failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum executions to return")
	return cmd
}

func (s *runtimeState) newExecRefundCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refund <execution-id>",
		Short: "Report what a failed execution owes the user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := s.store.Get(args[0])
			if err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "load execution", err)
			}
			refund, err := engine.ComputeRefund(&state)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), refund, nil)
		},
	}
}
