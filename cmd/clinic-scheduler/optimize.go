package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/clinic-scheduler-api/internal/service"
)

func optimizeCmd() *cobra.Command {
	var (
		providerID string
		apply      bool
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Generate (and optionally apply) schedule optimization proposals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if apply && providerID == "" {
				return fmt.Errorf("--apply requires --provider")
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.bookings.WarmIndex(ctx); err != nil {
				return fmt.Errorf("warm conflict index: %w", err)
			}

			if providerID == "" {
				return a.optimizer.OptimizeAll(ctx, service.TriggerCLI)
			}

			proposal, err := a.optimizer.Optimize(ctx, providerID, service.TriggerCLI)
			if err != nil {
				return err
			}
			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")
			if !apply {
				return out.Encode(proposal)
			}

			a.audit.Start(context.WithoutCancel(ctx))
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				a.audit.Stop(stopCtx)
			}()

			result, err := a.optimizer.Apply(ctx, providerID, proposal.ProposalID)
			if err != nil {
				return err
			}
			return out.Encode(result)
		},
	}

	cmd.Flags().StringVar(&providerID, "provider", "", "provider id; all providers when empty")
	cmd.Flags().BoolVar(&apply, "apply", false, "apply the generated proposal immediately")
	return cmd
}
