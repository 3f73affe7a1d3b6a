package main

import (
	"os"

	"eddy/cmd/eddy/chat"
	"eddy/cmd/eddy/gateway"
	"eddy/cmd/eddy/setup"
	"eddy/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	logger.Init()
	rootCmd := &cobra.Command{
		Use:   "eddy",
		Short: "Eddy is a streaming chat client for LLM agents",
	}

	rootCmd.AddCommand(chat.Cmd)
	rootCmd.AddCommand(gateway.Cmd)
	rootCmd.AddCommand(setup.Cmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
