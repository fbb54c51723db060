package expense

import (
	"strconv"
	"strings"

	"expense-web/internal/extraction"
)

// Draft is the in-progress expense record being composed or edited. Every
// editable field is held in its string form until submit; Payload does the
// parsing once the draft is frozen.
type Draft struct {
	Amount      string
	Description string
	CompanyName string
	ExpenseDate string
	CategoryID  string
	Notes       string

	// ReceiptDataURI holds the inline-encoded receipt. It is retained
	// independently of whether extraction succeeds.
	ReceiptDataURI string
}

// FromExpense seeds a draft from a persisted expense for editing.
func FromExpense(e Expense) *Draft {
	d := &Draft{
		Amount:      strconv.FormatFloat(float64(e.Amount), 'f', 2, 64),
		Description: e.Description,
		CompanyName: e.CompanyName,
		ExpenseDate: e.ExpenseDate,
		Notes:       e.Notes,
	}
	if e.CategoryID != 0 {
		d.CategoryID = strconv.Itoa(e.CategoryID)
	}
	return d
}

// Pristine reports whether every editable field is still at its empty
// default. Extraction only auto-triggers on a pristine draft, so it can
// never overwrite manual input. The receipt itself does not count.
func (d *Draft) Pristine() bool {
	return d.Amount == "" &&
		d.Description == "" &&
		d.CompanyName == "" &&
		d.ExpenseDate == "" &&
		d.CategoryID == "" &&
		d.Notes == ""
}

// ApplyExtraction merges an extraction result into the draft. A nil result
// leaves the draft untouched. The category reference is resolved against
// the known set; an id or label matching nothing is dropped rather than
// forwarded as an invalid reference.
func (d *Draft) ApplyExtraction(res *extraction.Result, categories []Category) {
	if res == nil {
		return
	}
	d.Amount = string(res.Amount)
	d.Description = res.Description
	d.CompanyName = res.CompanyName
	d.Notes = res.Notes
	d.ExpenseDate = res.Date
	if id, ok := resolveCategory(string(res.Category), categories); ok {
		d.CategoryID = strconv.Itoa(id)
	}
}

// resolveCategory maps a category reference from the model, either an id
// or a name, onto the known category set.
func resolveCategory(ref string, categories []Category) (int, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, false
	}
	if id, err := strconv.Atoi(ref); err == nil {
		for _, c := range categories {
			if c.ID == id {
				return id, true
			}
		}
		return 0, false
	}
	for _, c := range categories {
		if strings.EqualFold(c.Name, ref) {
			return c.ID, true
		}
	}
	return 0, false
}

// ValidationError lists the required fields missing or malformed at submit
// time.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing or invalid required fields: " + strings.Join(e.Fields, ", ")
}

// Validate enforces the required-field contract before a draft may be
// submitted: a numeric amount, a description, and an expense date.
func (d *Draft) Validate() error {
	var fields []string
	if _, err := strconv.ParseFloat(strings.TrimSpace(d.Amount), 64); err != nil {
		fields = append(fields, "amount")
	}
	if strings.TrimSpace(d.Description) == "" {
		fields = append(fields, "description")
	}
	if strings.TrimSpace(d.ExpenseDate) == "" {
		fields = append(fields, "expenseDate")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Payload freezes the draft into the remote API's expense shape. Callers
// run Validate first; Payload assumes a valid draft.
func (d *Draft) Payload(userID int) ExpensePayload {
	amount, _ := strconv.ParseFloat(strings.TrimSpace(d.Amount), 64)
	categoryID, _ := strconv.Atoi(strings.TrimSpace(d.CategoryID))
	return ExpensePayload{
		UserID:      userID,
		CompanyName: d.CompanyName,
		Amount:      amount,
		Description: d.Description,
		ExpenseDate: d.ExpenseDate,
		CategoryID:  categoryID,
		Notes:       d.Notes,
	}
}
