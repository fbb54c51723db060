package web

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("draftRegistry", func() {
	var registry *draftRegistry

	BeforeEach(func() {
		registry = newDraftRegistry()
	})

	Describe("newToken", func() {
		It("should mint distinct hex tokens", func() {
			first, err := registry.newToken()
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(MatchRegexp("^[0-9a-f]{32}$"))

			second, err := registry.newToken()
			Expect(err).NotTo(HaveOccurred())
			Expect(second).NotTo(Equal(first))
		})
	})

	Describe("guard", func() {
		It("should hand back the same guard for a token", func() {
			Expect(registry.guard("tok")).To(BeIdenticalTo(registry.guard("tok")))
		})

		It("should keep guards for distinct tokens apart", func() {
			Expect(registry.guard("a")).NotTo(BeIdenticalTo(registry.guard("b")))
		})

		It("should evict a guard idle past the horizon", func() {
			stale := registry.guard("stale")
			registry.guards["stale"].lastUsed = time.Now().Add(-2 * guardIdleTTL)

			registry.guard("other")

			Expect(registry.guard("stale")).NotTo(BeIdenticalTo(stale))
		})

		It("should never evict a busy guard", func() {
			busy := registry.guard("busy")
			Expect(busy.TryBegin()).To(BeTrue())
			registry.guards["busy"].lastUsed = time.Now().Add(-2 * guardIdleTTL)

			registry.guard("other")

			Expect(registry.guard("busy")).To(BeIdenticalTo(busy))
		})
	})

	Describe("drop", func() {
		It("should discard the guard so the next request starts fresh", func() {
			g := registry.guard("tok")
			Expect(g.TryBegin()).To(BeTrue())

			registry.drop("tok")

			Expect(registry.guard("tok")).NotTo(BeIdenticalTo(g))
		})

		It("should tolerate an unknown token", func() {
			registry.drop("never-issued")
		})
	})
})
