package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/sottey/dispatchtoo/internal/dispatch"
	"github.com/sottey/dispatchtoo/internal/model"
	"github.com/sottey/dispatchtoo/internal/store"
)

func openService(cmd *cobra.Command) (*dispatch.Service, *store.SQLite, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	st, err := store.NewSQLite(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return dispatch.NewService(st, log.New(os.Stderr, "", log.LstdFlags)), st, nil
}

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-template",
		Short: "Store the daily template note for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			file, _ := cmd.Flags().GetString("file")
			title, _ := cmd.Flags().GetString("title")

			content, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			_, st, err := openService(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if _, err := st.SaveNote(model.UserID(owner), title, string(content)); err != nil {
				return err
			}
			fmt.Printf("template %q saved for %s\n", title, owner)
			return nil
		},
	}

	cmd.Flags().String("db", "data/dispatchtoo.db", "sqlite database path")
	cmd.Flags().StringP("owner", "o", "", "owner id")
	cmd.Flags().StringP("file", "f", "", "template file")
	cmd.Flags().String("title", dispatch.DefaultTemplateNoteTitle, "note title")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func dispatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Operate on dispatches",
	}

	cmd.PersistentFlags().String("db", "data/dispatchtoo.db", "sqlite database path")

	get := &cobra.Command{
		Use:   "get [date]",
		Short: "Get or create an owner's dispatch for a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			svc, st, err := openService(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := svc.GetOrCreateDispatch(model.UserID(owner), args[0])
			if err != nil {
				return err
			}
			printDispatch(res.Dispatch)
			if res.Created {
				fmt.Printf("created, %d template task(s)\n", res.TemplateTaskCount)
			}
			view, err := svc.GetDispatch(res.Dispatch.ID)
			if err != nil {
				return err
			}
			for _, t := range view.Tasks {
				fmt.Printf("  [%s] %s\n", t.Status, t.Title)
			}
			return nil
		},
	}
	get.Flags().StringP("owner", "o", "", "owner id")
	_ = get.MarkFlagRequired("owner")

	finalize := &cobra.Command{
		Use:   "finalize [dispatch-id]",
		Short: "Finalize a dispatch, rolling unfinished tasks to the next day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, st, err := openService(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := svc.Finalize(model.DispatchID(args[0]))
			if err != nil {
				return err
			}
			printDispatch(res.Dispatch)
			if res.NextDispatchID != nil {
				fmt.Printf("rolled %d task(s) into %s\n", res.RolledOver, *res.NextDispatchID)
			} else {
				fmt.Println("nothing to roll over")
			}
			return nil
		},
	}

	unfinalize := &cobra.Command{
		Use:   "unfinalize [dispatch-id]",
		Short: "Reopen a finalized dispatch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, st, err := openService(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := svc.Unfinalize(model.DispatchID(args[0]))
			if err != nil {
				return err
			}
			printDispatch(res.Dispatch)
			if res.HasNextDispatch {
				fmt.Printf("note: a dispatch already exists for %s\n", res.NextDispatchDate)
			}
			return nil
		},
	}

	cmd.AddCommand(get)
	cmd.AddCommand(finalize)
	cmd.AddCommand(unfinalize)

	return cmd
}

func printDispatch(d model.Dispatch) {
	state := "open"
	if d.Finalized {
		state = "finalized"
	}
	fmt.Printf("%s  %s  %s\n", d.ID, d.Date, state)
	if d.Summary != "" {
		fmt.Printf("  %s\n", d.Summary)
	}
}
