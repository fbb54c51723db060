package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnparseable reports that the model's reply did not contain a usable
// JSON payload. It is a recoverable condition: callers degrade to an
// unchanged draft instead of surfacing an error.
var ErrUnparseable = errors.New("unparseable extraction response")

// stripFences removes the markdown code fence markers the model sometimes
// wraps its answer in, so a fenced payload parses identically to a bare one.
func stripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// parseResult isolates the JSON object embedded in the model's reply and
// decodes it into a Result.
func parseResult(text string) (*Result, error) {
	text = stripFences(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrUnparseable)
	}

	// Bound to the outermost object: models occasionally pad the JSON
	// with prose despite the instruction.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrUnparseable)
	}

	var res Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	res.Date = normalizeDate(res.Date)
	res.Description = strings.TrimSpace(res.Description)
	res.CompanyName = strings.TrimSpace(res.CompanyName)

	return &res, nil
}

// normalizeDate coerces common date spellings to YYYY-MM-DD. A date that
// fits no known format comes back empty; the date field is user-validated
// on the form, and a visibly missing date beats a silently wrong one.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"02-01-2006",
	}
	for _, format := range formats {
		if d, err := time.Parse(format, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}
