package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func readContent(cmd *cobra.Command, filePath string) (string, error) {
	if filePath != "" && filePath != "-" {
		//nolint:gosec // G304: path is operator supplied
		bytes, err := os.ReadFile(filePath)
		if err != nil {
			return "", err
		}
		return string(bytes), nil
	}

	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "Enter content (Ctrl-D when done):")
	}

	bytes, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
