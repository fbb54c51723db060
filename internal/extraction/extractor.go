package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Category is one entry of the taxonomy the model must choose from.
type Category struct {
	ID   int
	Name string
}

// Result contains the structured fields extracted from a receipt. Field
// types are deliberately loose: the model sometimes returns numbers as
// strings and vice versa, and the category may come back as an id or a
// label. Callers validate.
type Result struct {
	Date        string     `json:"date"`
	Amount      FlexString `json:"amount"`
	Description string     `json:"description"`
	CompanyName string     `json:"companyName"`
	Notes       string     `json:"notes"`
	Category    FlexString `json:"category"`
}

// Extractor defines the interface for receipt extraction backends.
type Extractor interface {
	// Extract sends the encoded receipt and the known categories to the
	// model and returns the structured payload embedded in its answer.
	// Unusable answers fail with ErrUnparseable.
	Extract(ctx context.Context, receiptDataURI string, categories []Category) (*Result, error)
	// Close releases backend resources.
	Close() error
}

// FlexString decodes a JSON string, number, or null into a string.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// buildInstruction renders the extraction prompt: the exact output schema
// plus the category enumeration the model must answer with an id from.
func buildInstruction(categories []Category) string {
	pairs := make([]string, 0, len(categories))
	for _, c := range categories {
		pairs = append(pairs, fmt.Sprintf("%d: %s", c.ID, c.Name))
	}
	return fmt.Sprintf(`Extract and return the following information in JSON format from the receipt: { date: date of expense ("YYYY-MM-DD"), amount: amount of receipt, description: title of expense (super brief, put any supporting info in the notes), companyName: name of company issuing the expense, notes: any notes, category: return the corresponding category id from the list of categories: %s }. Only return the JSON object and nothing else.`, strings.Join(pairs, ", "))
}
