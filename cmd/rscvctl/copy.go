package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustsynccv/rustsynccv-go/internal/clip"
)

func newCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy",
		Short: "Copy stdin to the local clipboard (like pbcopy)",
		Long: `Reads stdin and writes it directly to the local OS clipboard.
rscvd's own clipboard monitor picks up the change and syncs it like any
other local clipboard edit — this command never talks to the daemon.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			backend := clip.New()
			defer backend.Close()
			return backend.WriteText(string(data))
		},
	}
}
