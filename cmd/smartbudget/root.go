package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "smartbudget",
		Short:         "SmartBudget: a conversational budgeting and banking assistant",
		Long:          "smartbudget tracks income, expenses and savings goals from plain chat messages and answers budgeting questions over HTTP, WhatsApp or the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
	)

	return rootCmd
}
