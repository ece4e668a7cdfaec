package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"bilancio/internal/core"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	incomeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	expenseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	cellStyle    = lipgloss.NewStyle().PaddingRight(2)
)

// newTable lays out columns by their visible width, so styled cells line up.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.PaddingRight(2)
			}
			return cellStyle
		})
}

func signedAmount(tx core.Transaction, currency string) string {
	s := core.FormatSigned(tx, currency)
	if tx.Type == core.Income {
		return incomeStyle.Render(s)
	}
	return expenseStyle.Render(s)
}

// balanceAmount is green when the balance is not negative.
func balanceAmount(m core.Money, currency string) string {
	s := core.FormatMoney(m, currency)
	if m.Cents < 0 {
		return expenseStyle.Render(s)
	}
	return incomeStyle.Render(s)
}
