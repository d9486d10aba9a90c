package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nmorales/agentexec/internal/adapter"
	"github.com/nmorales/agentexec/internal/adapter/signer"
	"github.com/nmorales/agentexec/internal/engine"
	clierr "github.com/nmorales/agentexec/internal/errors"
	"github.com/nmorales/agentexec/internal/model"
	"github.com/nmorales/agentexec/internal/plan"
	"github.com/spf13/cobra"
)

func (s *runtimeState) newPlanCommand() *cobra.Command {
	root := &cobra.Command{Use: "plan", Short: "Validate and run agent plans"}
	root.AddCommand(s.newPlanValidateCommand())
	root.AddCommand(s.newPlanRunCommand())
	return root
}

func (s *runtimeState) newPlanValidateCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a plan without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := s.readPlan(cmd, file)
			if err != nil {
				return err
			}
			p = plan.Validate(p)
			report := model.ValidationReport{
				IsValid:       p.IsValid,
				Error:         p.Error,
				Steps:         len(p.Steps),
				InitialToken:  p.InitialToken,
				InitialAmount: p.InitialAmount,
			}
			var warnings []string
			if !p.IsValid {
				warnings = []string{"plan is invalid: " + p.Error}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), report, warnings)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Plan JSON file (use - for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (s *runtimeState) newPlanRunCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a validated plan step by step",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := s.readPlan(cmd, file)
			if err != nil {
				return err
			}
			p = plan.Validate(p)
			if !p.IsValid {
				return clierr.New(clierr.CodeInvalidPlan, p.Error)
			}

			txSigner, err := signer.NewLocalSignerFromEnv()
			if err != nil {
				return clierr.Wrap(clierr.CodeSigner, "load signer", err)
			}
			evm, err := adapter.NewEVM(txSigner, adapter.Options{
				RPCURL:        s.settings.RPCURL,
				Simulate:      s.settings.Simulate,
				PollInterval:  s.settings.PollInterval,
				StepTimeout:   s.settings.StepTimeout,
				GasMultiplier: s.settings.GasMultiplier,
			})
			if err != nil {
				return err
			}

			coord := engine.NewCoordinator(
				engine.Adapters{Swap: evm, Stake: evm},
				engine.WithStore(s.store),
				engine.WithLogger(s.logger),
			)
			state, err := coord.Run(context.Background(), p)
			if err != nil {
				return err
			}
			var warnings []string
			if state.Error != "" {
				warnings = []string{fmt.Sprintf("execution halted at step %d: %s", state.CurrentStep+1, state.Error)}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), state, warnings)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Plan JSON file (use - for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (s *runtimeState) readPlan(cmd *cobra.Command, file string) (plan.AgentPlan, error) {
	var (
		buf []byte
		err error
	)
	if strings.TrimSpace(file) == "-" {
		buf, err = io.ReadAll(cmd.InOrStdin())
	} else {
		buf, err = os.ReadFile(file)
	}
	if err != nil {
		return plan.AgentPlan{}, clierr.Wrap(clierr.CodeUsage, "read plan file", err)
	}
	var p plan.AgentPlan
	if err := json.Unmarshal(buf, &p); err != nil {
		return plan.AgentPlan{}, clierr.Wrap(clierr.CodeInvalidPlan, "parse plan json", err)
	}
	return p, nil
}
