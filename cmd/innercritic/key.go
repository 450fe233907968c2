package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the OpenRouter API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Store an API key locally (an empty string removes it)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.session.SetAPIKey(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf(colorGreen+"✓"+colorReset+" key source: %s\n", a.session.APIKeyStatus(cmd.Context()))
		return nil
	},
}

var keyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the active key comes from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()
		fmt.Printf("key source: %s\n", a.session.APIKeyStatus(cmd.Context()))
		return nil
	},
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyStatusCmd)
}
