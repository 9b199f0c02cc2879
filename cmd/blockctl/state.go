package main

import (
	"github.com/spf13/cobra"
	"github.com/stemsi/hello-pdf-submission/internal/model"
	"github.com/stemsi/hello-pdf-submission/internal/service"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset learner submissions",
}

var stateShowCmd = &cobra.Command{
	Use:   "show <usage-id> [learner-id]",
	Short: "Print one learner's state, or every stored submission of the block",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 2 {
			fields, err := current.state.Load(cmd.Context(), model.LearnerKey(args[0], args[1]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), model.DecodeLearnerState(fields))
		}

		subs, err := service.NewMonitorService(current.fields, current.grades).ListSubmissions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), subs)
	},
}

var stateResetCmd = &cobra.Command{
	Use:   "reset <usage-id> <learner-id>",
	Short: "Return a learner to the unsubmitted state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := model.LearnerKey(args[0], args[1])
		if err := current.state.Save(cmd.Context(), key, model.LearnerState{}.Fields()); err != nil {
			return err
		}
		current.log.Info().Str("usage_id", args[0]).Str("learner_id", args[1]).Msg("learner state reset")
		return printJSON(cmd.OutOrStdout(), model.LearnerState{})
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd, stateResetCmd)
}
