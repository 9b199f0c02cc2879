package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stemsi/hello-pdf-submission/internal/model"
)

var (
	settingsAPIBase string
	settingsTitle   string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the authoring settings of a block usage",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show <usage-id>",
	Short: "Print api_base and title, with defaults applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := current.state.Load(cmd.Context(), model.ContentKey(args[0]))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), model.DecodeSettings(fields, current.defaults()))
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <usage-id>",
	Short: "Update api_base and/or title; omitted flags keep their value",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsSet,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	settingsSetCmd.Flags().StringVar(&settingsAPIBase, "api-base", "", "Base URL of the rendering service")
	settingsSetCmd.Flags().StringVar(&settingsTitle, "title", "", "Default assignment title")
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsAPIBase == "" && settingsTitle == "" {
		return fmt.Errorf("nothing to change: pass --api-base and/or --title")
	}

	key := model.ContentKey(args[0])
	fields, err := current.state.Load(cmd.Context(), key)
	if err != nil {
		return err
	}

	updated := model.DecodeSettings(fields, current.defaults()).Merge(model.StudioSubmitRequest{
		APIBase: settingsAPIBase,
		Title:   settingsTitle,
	})
	if err := current.state.Save(cmd.Context(), key, updated.Fields()); err != nil {
		return err
	}

	current.log.Info().Str("usage_id", args[0]).Msg("settings updated")
	return printJSON(cmd.OutOrStdout(), updated)
}
