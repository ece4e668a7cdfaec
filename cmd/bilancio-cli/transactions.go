package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bilancio/internal/core"
)

func addCmd(a *app) *cobra.Command {
	var c core.Candidate

	cmd := &cobra.Command{
		Use:   "add AMOUNT",
		Short: "Record a transaction",
		Long: `Record an income or expense. AMOUNT is a positive number such as 12.50.
The category defaults to Other, the note to "No description" and the date to today.`,
		Example: `  bilancio-cli add 50000 --type income --category Salary --note Advance
  bilancio-cli add 1500 --category Food --date 2024-03-01`,
		Args: exactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, out io.Writer) error {
			c.Amount = args[0]
			tx, err := a.service.Create(cmd.Context(), c)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s %s %s\n",
				successStyle.Render("Added"),
				tx.Type,
				signedAmount(tx, a.currency),
				mutedStyle.Render(fmt.Sprintf("(%s, id %d)", tx.Category, tx.ID)))
			return nil
		}),
	}

	cmd.Flags().StringVarP(&c.Type, "type", "t", string(core.Expense), "income or expense")
	cmd.Flags().StringVarP(&c.Category, "category", "c", "", "category label")
	cmd.Flags().StringVarP(&c.Note, "note", "n", "", "free text note")
	cmd.Flags().StringVarP(&c.Date, "date", "d", "", "date as YYYY-MM-DD (default today)")
	return cmd
}

func listCmd(a *app) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List transactions, newest first",
		Args:    exactArgs(0),
		RunE: a.run(func(_ *cobra.Command, _ []string, out io.Writer) error {
			f, err := core.ParseTypeFilter(filter)
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}

			txs := a.service.List(f)
			if len(txs) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No transactions yet. Use 'bilancio-cli add' to record one."))
				return nil
			}

			t := newTable("ID", "Date", "Category", "Note", "Amount")
			for _, tx := range txs {
				t.Row(strconv.FormatInt(tx.ID, 10), tx.Date.String(), tx.Category, tx.Note, signedAmount(tx, a.currency))
			}
			_, err = fmt.Fprintln(out, t.Render())
			return err
		}),
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", string(core.FilterAll), "all, income or expense")
	return cmd
}

func removeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Delete a transaction by id",
		Args:    exactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, out io.Writer) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return &core.ValidationError{Field: core.FieldID, Err: core.ErrInvalidID}
			}

			removed, err := a.service.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%w: id %d", errNotFound, id)
			}
			fmt.Fprintf(out, "%s transaction %d\n", successStyle.Render("Removed"), id)
			return nil
		}),
	}
}

func totalsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "Show income, expense and balance",
		Args:  exactArgs(0),
		RunE: a.run(func(_ *cobra.Command, _ []string, out io.Writer) error {
			t := a.service.Totals()
			tbl := newTable().
				Row("Income", incomeStyle.Render(core.FormatMoney(t.Income, a.currency))).
				Row("Expense", expenseStyle.Render(core.FormatMoney(t.Expense, a.currency))).
				Row(headerStyle.Render("Balance"), balanceAmount(t.Balance, a.currency))
			_, err := fmt.Fprintln(out, tbl.Render())
			return err
		}),
	}
}

func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show income and expense per category",
		Args:  exactArgs(0),
		RunE: a.run(func(_ *cobra.Command, _ []string, out io.Writer) error {
			rows := a.service.Stats()
			if len(rows) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No activity yet."))
				return nil
			}

			tbl := newTable("Category", "Income", "Expense")
			for _, r := range rows {
				tbl.Row(r.Category,
					incomeStyle.Render(core.FormatMoney(r.Income, a.currency)),
					expenseStyle.Render(core.FormatMoney(r.Expense, a.currency)))
			}
			_, err := fmt.Fprintln(out, tbl.Render())
			return err
		}),
	}
}

func seedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo transactions into an empty ledger",
		Args:  exactArgs(0),
		RunE: a.run(func(cmd *cobra.Command, _ []string, out io.Writer) error {
			seeded, err := a.service.SeedDemo(cmd.Context())
			if err != nil {
				return err
			}
			if !seeded {
				fmt.Fprintln(out, mutedStyle.Render("Ledger is not empty, nothing seeded."))
				return nil
			}
			fmt.Fprintf(out, "%s %d demo transactions\n", successStyle.Render("Seeded"), len(a.service.List(core.FilterAll)))
			return nil
		}),
	}
}
