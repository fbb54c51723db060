package expense

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"expense-web/internal/extraction"
)

// mockExtractor records the call it receives and plays back a canned
// result or error.
type mockExtractor struct {
	result *extraction.Result
	err    error

	called     bool
	dataURI    string
	categories []extraction.Category
}

func (m *mockExtractor) Extract(_ context.Context, dataURI string, categories []extraction.Category) (*extraction.Result, error) {
	m.called = true
	m.dataURI = dataURI
	m.categories = categories
	return m.result, m.err
}

func (m *mockExtractor) Close() error { return nil }

func receiptPNG() []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2)))).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Service", func() {
	var (
		extractor  *mockExtractor
		service    *Service
		draft      *Draft
		guard      *Guard
		categories []Category
	)

	BeforeEach(func() {
		extractor = &mockExtractor{
			result: &extraction.Result{
				Date:        "2024-03-01",
				Amount:      "42.50",
				Description: "Lunch",
				CompanyName: "Cafe",
				Category:    "1",
			},
		}
		service = NewService(extractor)
		draft = &Draft{}
		guard = &Guard{}
		categories = []Category{{ID: 1, Name: "Utilities"}}
	})

	Describe("ScanReceipt", func() {
		When("the draft is pristine", func() {
			It("should extract and fill the draft", func() {
				err := service.ScanReceipt(context.Background(), draft, guard, receiptPNG(), "image/png", categories)
				Expect(err).NotTo(HaveOccurred())

				Expect(extractor.called).To(BeTrue())
				Expect(extractor.categories).To(Equal([]extraction.Category{{ID: 1, Name: "Utilities"}}))
				Expect(draft.Amount).To(Equal("42.50"))
				Expect(draft.Description).To(Equal("Lunch"))
				Expect(draft.ExpenseDate).To(Equal("2024-03-01"))
				Expect(draft.CategoryID).To(Equal("1"))
				Expect(draft.ReceiptDataURI).To(HavePrefix("data:image/png;base64,"))
			})

			It("should hand the extractor the encoded receipt", func() {
				Expect(service.ScanReceipt(context.Background(), draft, guard, receiptPNG(), "image/png", categories)).To(Succeed())
				Expect(extractor.dataURI).To(Equal(draft.ReceiptDataURI))
			})
		})

		When("the draft already has manual input", func() {
			BeforeEach(func() {
				draft.Description = "typed by hand"
			})

			It("should attach the receipt without extracting", func() {
				err := service.ScanReceipt(context.Background(), draft, guard, receiptPNG(), "image/png", categories)
				Expect(err).NotTo(HaveOccurred())

				Expect(extractor.called).To(BeFalse())
				Expect(draft.Description).To(Equal("typed by hand"))
				Expect(draft.ReceiptDataURI).To(HavePrefix("data:image/png;base64,"))
			})
		})

		When("the model answer is unusable", func() {
			BeforeEach(func() {
				extractor.result = nil
				extractor.err = extraction.ErrUnparseable
			})

			It("should keep the receipt and report no error", func() {
				err := service.ScanReceipt(context.Background(), draft, guard, receiptPNG(), "image/png", categories)
				Expect(err).NotTo(HaveOccurred())

				Expect(draft.ReceiptDataURI).To(HavePrefix("data:image/png;base64,"))
				Expect(draft.Pristine()).To(BeTrue())
			})

			It("should release the guard for the next attempt", func() {
				Expect(service.ScanReceipt(context.Background(), draft, guard, receiptPNG(), "image/png", categories)).To(Succeed())
				Expect(guard.Busy()).To(BeFalse())
			})
		})

		When("an extraction is already in flight", func() {
			BeforeEach(func() {
				Expect(guard.TryBegin()).To(BeTrue())
			})

			It("should refuse with ErrExtractionBusy and leave the draft alone", func() {
				err := service.ScanReceipt(context.Background(), draft, guard, receiptPNG(), "image/png", categories)
				Expect(err).To(MatchError(ErrExtractionBusy))

				Expect(extractor.called).To(BeFalse())
				Expect(draft.ReceiptDataURI).To(BeEmpty())
			})
		})

		When("the upload cannot be encoded", func() {
			It("should fail and leave the prior draft state untouched", func() {
				draft.ReceiptDataURI = "data:image/png;base64,cHJpb3I="
				err := service.ScanReceipt(context.Background(), draft, guard, []byte("not an image"), "image/jpeg", categories)
				Expect(err).To(HaveOccurred())
				Expect(err).NotTo(MatchError(ErrExtractionBusy))

				Expect(extractor.called).To(BeFalse())
				Expect(draft.ReceiptDataURI).To(Equal("data:image/png;base64,cHJpb3I="))
				Expect(guard.Busy()).To(BeFalse())
			})
		})

		When("the extraction fails for transport reasons", func() {
			BeforeEach(func() {
				extractor.result = nil
				extractor.err = errors.New("connection refused")
			})

			It("should degrade the same way as an unusable answer", func() {
				err := service.ScanReceipt(context.Background(), draft, guard, receiptPNG(), "image/png", categories)
				Expect(err).NotTo(HaveOccurred())
				Expect(draft.Pristine()).To(BeTrue())
				Expect(draft.ReceiptDataURI).NotTo(BeEmpty())
			})
		})
	})
})
