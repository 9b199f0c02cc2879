package main

import (
	"github.com/spf13/cobra"
)

var gradesLimit int

var gradesCmd = &cobra.Command{
	Use:   "grades",
	Short: "Inspect published grade events",
}

var gradesListCmd = &cobra.Command{
	Use:   "list <usage-id>",
	Short: "List the most recent grade events of a block usage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := current.grades.ListByUsage(cmd.Context(), args[0], gradesLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), events)
	},
}

func init() {
	rootCmd.AddCommand(gradesCmd)
	gradesCmd.AddCommand(gradesListCmd)
	gradesListCmd.Flags().IntVar(&gradesLimit, "limit", 20, "Maximum number of events to print")
}
