// rscvctl: local control CLI for a running rscvd daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:          "rscvctl",
		Short:        "Control a running rscvd daemon",
		SilenceUsage: true,
	}

	root.AddCommand(
		newPauseCmd(),
		newResumeCmd(),
		newShutdownCmd(),
		newStatusCmd(),
		newCopyCmd(),
		newPasteCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("rscvctl %s\n", Version)
		},
	}
}

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause clipboard sync",
		Args:  cobra.NoArgs,
		RunE:  func(_ *cobra.Command, _ []string) error { return simpleCommand("pause") },
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume clipboard sync",
		Args:  cobra.NoArgs,
		RunE:  func(_ *cobra.Command, _ []string) error { return simpleCommand("resume") },
	}
}

func newShutdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Stop the rscvd daemon",
		Args:  cobra.NoArgs,
		RunE:  func(_ *cobra.Command, _ []string) error { return simpleCommand("shutdown") },
	}
}
