package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const (
	FilterAll     TypeFilter = "all"
	FilterIncome  TypeFilter = "income"
	FilterExpense TypeFilter = "expense"
)

const (
	// DefaultCategory is assigned when a transaction is recorded without one.
	DefaultCategory = "Other"
	// DefaultNote is assigned when the note is blank.
	DefaultNote = "No description"
	// MaxNoteLength is measured in runes.
	MaxNoteLength = 200

	dateLayout = "2006-01-02"
)

type (
	TxType string

	// TypeFilter selects a subsequence of the ledger by transaction type.
	TypeFilter string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is one recorded income or expense event.
	Transaction struct {
		ID        int64
		Amount    Money
		Type      TxType
		Category  string
		Note      string
		Date      Date
		CreatedAt time.Time
	}

	// Candidate holds raw form values for a transaction that has not been validated yet.
	Candidate struct {
		Amount   string `json:"amount"`
		Type     string `json:"type"`
		Category string `json:"category"`
		Note     string `json:"note"`
		Date     string `json:"date"`
	}

	Totals struct {
		Income  Money
		Expense Money
		Balance Money
	}

	CategoryTotals struct {
		Category string
		Income   Money
		Expense  Money
	}
)

// DefaultCategories seeds the category set on first run.
var DefaultCategories = []string{
	"Food",
	"Transport",
	"Entertainment",
	"Housing",
	"Clothing",
	"Salary",
	"Freelance",
	"Investments",
	"Gift",
	DefaultCategory,
}

// ParseTxType accepts "income" or "expense" in any case. A blank value means expense.
func ParseTxType(s string) (TxType, error) {
	switch TxType(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense, "":
		return Expense, nil
	default:
		return "", ErrInvalidType
	}
}

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

func (t TxType) String() string {
	return string(t)
}

// ParseTypeFilter parses all|income|expense. A blank value means all.
func ParseTypeFilter(s string) (TypeFilter, error) {
	switch f := TypeFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterAll, FilterIncome, FilterExpense:
		return f, nil
	case "":
		return FilterAll, nil
	default:
		return FilterAll, errors.New("unknown filter: " + s)
	}
}

// Match reports whether the transaction passes the filter.
func (f TypeFilter) Match(tx Transaction) bool {
	switch f {
	case FilterIncome:
		return tx.Type == Income
	case FilterExpense:
		return tx.Type == Expense
	default:
		return true
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Validate checks the invariants every stored transaction must satisfy.
func (t Transaction) Validate() error {
	if t.ID <= 0 {
		return &ValidationError{Field: FieldID, Err: ErrInvalidID}
	}
	if err := t.Amount.Validate(); err != nil {
		return &ValidationError{Field: FieldAmount, Err: err}
	}
	if !t.Type.Valid() {
		return &ValidationError{Field: FieldType, Err: ErrInvalidType}
	}
	if strings.TrimSpace(t.Category) == "" {
		return &ValidationError{Field: FieldCategory, Err: ErrMissingCategory}
	}
	if err := t.Date.Validate(); err != nil {
		return &ValidationError{Field: FieldDate, Err: err}
	}
	if len([]rune(t.Note)) > MaxNoteLength {
		return &ValidationError{Field: FieldNote, Err: ErrNoteTooLong}
	}
	return nil
}

// Signed returns the amount with the sign implied by the type.
func (t Transaction) Signed() Money {
	if t.Type == Expense {
		return Money{Cents: -t.Amount.Cents}
	}
	return t.Amount
}

// SumTotals aggregates income and expense over txs. Order does not matter.
func SumTotals(txs []Transaction) Totals {
	var tot Totals
	for _, tx := range txs {
		switch tx.Type {
		case Income:
			tot.Income = tot.Income.Add(tx.Amount)
		case Expense:
			tot.Expense = tot.Expense.Add(tx.Amount)
		}
	}
	tot.Balance = tot.Income.Sub(tot.Expense)
	return tot
}

// HasActivity reports whether any money moved in either direction.
func (c CategoryTotals) HasActivity() bool {
	return !c.Income.IsZero() || !c.Expense.IsZero()
}

// ActiveOnly drops categories with no activity, keeping order.
func ActiveOnly(rows []CategoryTotals) []CategoryTotals {
	out := make([]CategoryTotals, 0, len(rows))
	for _, r := range rows {
		if r.HasActivity() {
			out = append(out, r)
		}
	}
	return out
}
