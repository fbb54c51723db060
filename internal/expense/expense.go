package expense

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Amount tolerates the remote API returning monetary values as either JSON
// numbers or numeric strings.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parsing amount %q: %w", s, err)
	}
	*a = Amount(f)
	return nil
}

// Expense is a persisted expense record as the remote API returns it.
type Expense struct {
	ID          int    `json:"id"`
	UserID      int    `json:"userId"`
	CategoryID  int    `json:"categoryId"`
	Amount      Amount `json:"amount"`
	Description string `json:"description"`
	Notes       string `json:"notes,omitempty"`
	ReceiptURL  string `json:"receiptURL,omitempty"`
	ExpenseDate string `json:"expenseDate"`
	CompanyName string `json:"companyName,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// Category is an immutable reference entry, fetched once per page load.
type Category struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// ExpensePayload is the frozen request shape for create and update calls.
type ExpensePayload struct {
	ID          int     `json:"id,omitempty"`
	UserID      int     `json:"userId"`
	CompanyName string  `json:"companyName"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	ExpenseDate string  `json:"expenseDate"`
	CategoryID  int     `json:"categoryId"`
	Notes       string  `json:"notes"`
}

// ExpenseView pairs an expense with its category display name for
// rendering.
type ExpenseView struct {
	Expense
	CategoryName string
}

// JoinCategories decorates expenses with their category names and sorts
// them by expense date, newest first. An expense pointing at no known
// category renders as "Unknown Category".
func JoinCategories(expenses []Expense, categories []Category) []ExpenseView {
	byID := make(map[int]string, len(categories))
	for _, c := range categories {
		byID[c.ID] = c.Name
	}

	views := make([]ExpenseView, 0, len(expenses))
	for _, e := range expenses {
		name, ok := byID[e.CategoryID]
		if !ok {
			name = "Unknown Category"
		}
		views = append(views, ExpenseView{Expense: e, CategoryName: name})
	}

	// Expense dates are ISO 8601 strings, so lexicographic order is date
	// order.
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].ExpenseDate > views[j].ExpenseDate
	})
	return views
}

// FormatAmount renders a monetary amount with exactly two fraction digits.
// The value may arrive as a number or a numeric string; anything that does
// not parse renders as "N/A" rather than failing.
func FormatAmount(v string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return "N/A"
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
