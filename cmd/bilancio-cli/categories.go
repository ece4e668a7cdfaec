package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func categoriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cat"},
		Short:   "List or manage categories",
		Args:    exactArgs(0),
		RunE: a.run(func(_ *cobra.Command, _ []string, out io.Writer) error {
			for _, c := range a.service.Categories() {
				fmt.Fprintln(out, c)
			}
			return nil
		}),
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add NAME",
			Short: "Add a category",
			Args:  exactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string, out io.Writer) error {
				if err := a.service.AddCategory(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s category %q\n", successStyle.Render("Added"), args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:     "remove NAME",
			Aliases: []string{"rm"},
			Short:   "Remove a category; existing transactions keep their label",
			Args:    exactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string, out io.Writer) error {
				removed, err := a.service.RemoveCategory(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("unknown category %q", args[0])
				}
				fmt.Fprintf(out, "%s category %q\n", successStyle.Render("Removed"), args[0])
				return nil
			}),
		},
	)
	return cmd
}
