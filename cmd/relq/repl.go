package main

import (
	"github.com/chirst/relq/repl"
	"github.com/spf13/cobra"
)

func newReplCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return repl.New(a.db).Run()
		},
	}
}
