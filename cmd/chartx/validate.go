package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/comalice/statechart/internal/core"
	"github.com/comalice/statechart/internal/production"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a machine definition for structural problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := production.CompileFile(args[0])
			var defErr *core.DefinitionError
			if errors.As(err, &defErr) {
				for _, p := range defErr.Problems {
					fmt.Fprintf(cmd.OutOrStdout(), "  %v\n", p)
				}
				return fmt.Errorf("%s: %d problem(s)", args[0], len(defErr.Problems))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (machine %q, version %s, %d states)\n",
				args[0], def.ID(), def.Version(), def.Len()-1)
			return nil
		},
	}
}
