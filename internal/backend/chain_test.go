package backend_test

import (
	"context"
	"errors"

	"basegraph.app/boardroom/common/llm"
	"basegraph.app/boardroom/core/config"
	"basegraph.app/boardroom/internal/backend"
	"basegraph.app/boardroom/internal/discussion"
	"basegraph.app/boardroom/internal/fallback"
	"basegraph.app/boardroom/internal/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Chain", func() {
	var (
		first  *mockCandidate
		second *mockCandidate
		chain  *backend.Chain
	)

	BeforeEach(func() {
		first = &mockCandidate{name: "openai:gpt-4o"}
		second = &mockCandidate{name: "anthropic:claude-sonnet"}
		chain = backend.NewChain(fallback.New(), []fallback.Candidate{first, second})
	})

	generate := func() (discussion.Generation, error) {
		session, err := chain.NewSession(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		return session.GenerateTurn(context.Background(), discussion.TurnRequest{Role: model.RoleCFO, Prompt: "p"})
	}

	It("uses the second candidate when the first returns malformed JSON", func() {
		first.raw = `{"text": "cut off`
		second.raw = "```json\n{\"text\": \"We can afford it.\", \"key_points\": [\"cash positive\"]}\n```"

		gen, err := generate()

		Expect(err).NotTo(HaveOccurred())
		Expect(gen.Text).To(Equal("We can afford it."))
		Expect(gen.KeyPoints).To(Equal([]string{"cash positive"}))
		Expect(gen.Backend).To(Equal("anthropic:claude-sonnet"))
		Expect(first.callCount).To(Equal(1))
		Expect(second.callCount).To(Equal(1))
	})

	It("returns the exhausted chain error when every candidate fails", func() {
		first.err = errors.New("dial tcp: connection refused")
		second.raw = "no json here"

		_, err := generate()

		var exhausted *fallback.AllBackendsExhaustedError
		Expect(errors.As(err, &exhausted)).To(BeTrue())
		Expect(exhausted.Failures).To(HaveLen(2))
	})

	It("is named after its family", func() {
		Expect(chain.Name()).To(Equal("chain"))
	})
})

var _ = Describe("Candidates", func() {
	var cfg config.Config

	factory := func(c llm.Config) (llm.TextClient, error) {
		return &mockTextClient{cfg: c}, nil
	}

	BeforeEach(func() {
		cfg = config.Config{
			OpenAI: config.ProviderConfig{APIKey: "sk-test", MaxTokens: 900},
			Discussion: config.DiscussionConfig{Candidates: []config.CandidateConfig{
				{Provider: "openai", Model: "gpt-4o"},
				{Provider: "anthropic", Model: "claude-sonnet-4-5-20250514"},
				{Provider: "openai", Model: "gpt-4o-mini"},
			}},
		}
	})

	It("keeps the configured order and skips providers without credentials", func() {
		cands, err := backend.Candidates(cfg, factory, backend.TurnCandidateOptions(), true)

		Expect(err).NotTo(HaveOccurred())
		Expect(cands).To(HaveLen(2))
		Expect(cands[0].Name()).To(Equal("openai:gpt-4o"))
		Expect(cands[1].Name()).To(Equal("openai:gpt-4o-mini"))
	})

	It("fails on unconfigured providers unless told to skip them", func() {
		_, err := backend.Candidates(cfg, nil, backend.TurnCandidateOptions(), false)

		Expect(err).To(MatchError(ContainSubstring("anthropic:claude-sonnet-4-5-20250514")))
	})
})
