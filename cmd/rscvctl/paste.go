package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustsynccv/rustsynccv-go/internal/clip"
)

func newPasteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paste",
		Short: "Print the local clipboard to stdout (like pbpaste)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			backend := clip.New()
			defer backend.Close()
			text, ok, err := backend.ReadText()
			if err != nil {
				return fmt.Errorf("read clipboard: %w", err)
			}
			if !ok {
				return nil
			}
			_, err = fmt.Fprint(os.Stdout, text)
			return err
		},
	}
}
