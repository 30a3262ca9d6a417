package main

import (
	"io"
	"os"
	"strings"

	"github.com/chirst/relq/repl"
	"github.com/spf13/cobra"
)

func newExecCommand(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "exec [sql...]",
		Short: "Execute SQL statements and print the results",
		Long: "Execute the statements given as arguments, read from --file or, " +
			"when neither is given, read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := execInput(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}
			return repl.Exec(a.db, input, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "file containing SQL statements")
	return cmd
}

func execInput(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case file != "":
		b, err := os.ReadFile(file)
		return string(b), err
	case len(args) > 0:
		return strings.Join(args, ";\n"), nil
	}
	b, err := io.ReadAll(stdin)
	return string(b), err
}
