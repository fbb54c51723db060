package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expense-web/internal/extraction"
)

// ErrExtractionBusy reports that an extraction is already in flight for
// the draft. The caller drops the request; nothing is queued.
var ErrExtractionBusy = errors.New("extraction already in flight for this draft")

// Service orchestrates a receipt upload against a draft: encode first,
// then extract and reconcile when the draft allows it.
type Service struct {
	extractor extraction.Extractor
}

// NewService creates a new Service.
func NewService(extractor extraction.Extractor) *Service {
	return &Service{extractor: extractor}
}

// ScanReceipt encodes the uploaded file into the draft and, when every
// editable field is still empty, runs extraction and merges the result.
//
// The encoded receipt is retained regardless of extraction outcome. An
// unusable model answer is logged and swallowed; the user keeps the
// receipt and fills the form by hand. Encoding failure is the only error
// surfaced, and it leaves the prior draft state untouched.
func (s *Service) ScanReceipt(ctx context.Context, draft *Draft, guard *Guard, data []byte, contentType string, categories []Category) error {
	if !guard.TryBegin() {
		return ErrExtractionBusy
	}
	defer guard.End()

	dataURI, err := extraction.Encode(data, contentType)
	if err != nil {
		return fmt.Errorf("encoding receipt: %w", err)
	}
	draft.ReceiptDataURI = dataURI

	if !draft.Pristine() {
		return nil
	}

	taxonomy := make([]extraction.Category, len(categories))
	for i, c := range categories {
		taxonomy[i] = extraction.Category{ID: c.ID, Name: c.Name}
	}

	res, err := s.extractor.Extract(ctx, dataURI, taxonomy)
	if err != nil {
		slog.Error("Failed to extract receipt",
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil
	}

	draft.ApplyExtraction(res, categories)
	if res.Category != "" && draft.CategoryID == "" {
		slog.Warn("Extraction returned unknown category", "category", string(res.Category))
	}
	return nil
}
