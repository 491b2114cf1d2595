package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "dispatchtoo",
		Short:   "Dispatchtoo - daily dispatch and template tooling",
		Version: Version,
	}

	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(dispatchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
