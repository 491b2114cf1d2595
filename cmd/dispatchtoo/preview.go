package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sottey/dispatchtoo/internal/template"
)

func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Expand a template file against a date without writing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			file, _ := cmd.Flags().GetString("file")

			var content []byte
			var err error
			if file == "" || file == "-" {
				content, err = io.ReadAll(os.Stdin)
			} else {
				content, err = os.ReadFile(file)
			}
			if err != nil {
				return err
			}

			specs := template.Parse(string(content), date)
			if len(specs) == 0 {
				fmt.Println("no tasks for", date)
				return nil
			}
			for _, s := range specs {
				if s.DueDate != nil {
					fmt.Printf("- %s (due %s)\n", s.Title, *s.DueDate)
				} else {
					fmt.Printf("- %s\n", s.Title)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringP("date", "d", "", "target date (YYYY-MM-DD)")
	cmd.Flags().StringP("file", "f", "-", "template file, - for stdin")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}
