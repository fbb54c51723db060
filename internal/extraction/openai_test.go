package extraction

import (
	"context"
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

func chatReply(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
}

var _ = Describe("OpenAI", func() {
	var (
		server     *ghttp.Server
		client     *OpenAI
		categories []Category
		dataURI    string
	)

	BeforeEach(func() {
		server = ghttp.NewServer()

		var err error
		client, err = NewOpenAI(server.URL(), "test-key", "")
		Expect(err).NotTo(HaveOccurred())

		categories = []Category{
			{ID: 1, Name: "Utilities"},
			{ID: 2, Name: "Entertainment"},
		}
		dataURI = "data:image/png;base64,aGVsbG8="
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("NewOpenAI", func() {
		It("should require an API key", func() {
			_, err := NewOpenAI("", "", "")
			Expect(err).To(MatchError(ContainSubstring("api key is required")))
		})
	})

	Describe("Extract", func() {
		When("the model answers with a fenced JSON object", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", "/chat/completions"),
					ghttp.VerifyHeaderKV("Authorization", "Bearer test-key"),
					func(w http.ResponseWriter, r *http.Request) {
						var req chatRequest
						Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
						Expect(req.Model).To(Equal("gpt-4o-mini"))
						Expect(req.MaxTokens).To(Equal(300))
						Expect(req.Messages).To(HaveLen(2))
						Expect(req.Messages[0].Role).To(Equal("system"))
						Expect(req.Messages[0].Content).To(ContainSubstring("1: Utilities, 2: Entertainment"))

						raw, err := json.Marshal(req.Messages[1].Content)
						Expect(err).NotTo(HaveOccurred())
						Expect(string(raw)).To(ContainSubstring(dataURI))
					},
					ghttp.RespondWithJSONEncoded(http.StatusOK, chatReply(
						"```json\n{\"date\":\"2024-03-01\",\"amount\":\"42.50\",\"description\":\"Lunch\",\"companyName\":\"Cafe\",\"notes\":\"\",\"category\":1}\n```",
					)),
				))
			})

			It("should return the parsed result", func() {
				res, err := client.Extract(context.Background(), dataURI, categories)
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Date).To(Equal("2024-03-01"))
				Expect(string(res.Amount)).To(Equal("42.50"))
				Expect(res.Description).To(Equal("Lunch"))
				Expect(res.CompanyName).To(Equal("Cafe"))
				Expect(string(res.Category)).To(Equal("1"))
			})
		})

		When("the model declines with free text", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, chatReply("I cannot read this receipt.")))
			})

			It("should fail with ErrUnparseable", func() {
				_, err := client.Extract(context.Background(), dataURI, categories)
				Expect(err).To(MatchError(ErrUnparseable))
			})
		})

		When("the response carries no choices", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"choices": []any{}}))
			})

			It("should fail with ErrUnparseable", func() {
				_, err := client.Extract(context.Background(), dataURI, categories)
				Expect(err).To(MatchError(ErrUnparseable))
			})
		})

		When("the service returns an error status", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusTooManyRequests, "rate limited"))
			})

			It("should fail with a status error, not ErrUnparseable", func() {
				_, err := client.Extract(context.Background(), dataURI, categories)
				Expect(err).To(HaveOccurred())
				Expect(err).NotTo(MatchError(ErrUnparseable))
				Expect(err.Error()).To(ContainSubstring("429"))
			})
		})
	})
})
