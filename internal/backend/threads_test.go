package backend_test

import (
	"context"
	"errors"
	"time"

	"basegraph.app/boardroom/common/llm"
	"basegraph.app/boardroom/internal/backend"
	"basegraph.app/boardroom/internal/discussion"
	"basegraph.app/boardroom/internal/extract"
	"basegraph.app/boardroom/internal/model"
	"basegraph.app/boardroom/internal/persona"
	"basegraph.app/boardroom/internal/poller"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Threads", func() {
	var (
		ctx     context.Context
		client  *mockThreadClient
		threads *backend.Threads
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockThreadClient{}
		threads = backend.NewThreads(client, poller.New(client, poller.WithInterval(time.Millisecond)), map[model.Role]string{
			model.RoleCEO: "asst_ceo",
			model.RoleCFO: "asst_cfo",
		})
	})

	request := func(role model.Role, index int) discussion.TurnRequest {
		return discussion.TurnRequest{
			Role:    role,
			Index:   index,
			Persona: persona.Default().Get(role),
			Prompt:  "prompt for " + string(role),
		}
	}

	It("runs every turn of a discussion on one thread with the role's assistant", func() {
		client.replies = []string{`{"text":"Grow."}`, "```json\n{\"text\":\"Within budget.\"}\n```"}

		session, err := threads.NewSession(ctx, 1)
		Expect(err).NotTo(HaveOccurred())

		ceo, err := session.GenerateTurn(ctx, request(model.RoleCEO, 0))
		Expect(err).NotTo(HaveOccurred())
		cfo, err := session.GenerateTurn(ctx, request(model.RoleCFO, 1))
		Expect(err).NotTo(HaveOccurred())

		Expect(ceo.Text).To(Equal("Grow."))
		Expect(ceo.Backend).To(Equal("threads:asst_ceo"))
		Expect(cfo.Text).To(Equal("Within budget."))
		Expect(cfo.KeyPoints).To(BeEmpty())

		Expect(client.createCount).To(Equal(1))
		Expect(client.messages).To(Equal([]string{"prompt for CEO", "prompt for CFO"}))
		Expect(client.submits).To(Equal([]string{"asst_ceo", "asst_cfo"}))
		Expect(client.instructions[1]).To(Equal(persona.Default().Get(model.RoleCFO).Instructions))
	})

	It("opens a new thread per discussion", func() {
		_, err := threads.NewSession(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		_, err = threads.NewSession(ctx, 2)
		Expect(err).NotTo(HaveOccurred())

		Expect(client.createCount).To(Equal(2))
	})

	It("fails for roles without an assistant before touching the thread", func() {
		session, err := threads.NewSession(ctx, 1)
		Expect(err).NotTo(HaveOccurred())

		_, err = session.GenerateTurn(ctx, request(model.RoleCMO, 0))

		Expect(err).To(MatchError(ContainSubstring("no assistant configured for CMO")))
		Expect(client.messages).To(BeEmpty())
	})

	It("surfaces run failures", func() {
		client.runStatus = llm.RunStatusFailed
		session, err := threads.NewSession(ctx, 1)
		Expect(err).NotTo(HaveOccurred())

		_, err = session.GenerateTurn(ctx, request(model.RoleCEO, 0))

		var failed *poller.RunFailedError
		Expect(errors.As(err, &failed)).To(BeTrue())
		Expect(client.fetchCount).To(Equal(0))
	})

	It("surfaces empty and malformed replies", func() {
		session, err := threads.NewSession(ctx, 1)
		Expect(err).NotTo(HaveOccurred())

		_, err = session.GenerateTurn(ctx, request(model.RoleCEO, 0))
		Expect(err).To(MatchError(poller.ErrEmptyResponse))

		client.replies = []string{"I would rather not say."}
		_, err = session.GenerateTurn(ctx, request(model.RoleCEO, 0))
		Expect(extract.IsMalformed(err)).To(BeTrue())
	})

	It("reports thread creation failures", func() {
		client.createErr = errors.New("quota exceeded")

		_, err := threads.NewSession(ctx, 1)
		Expect(err).To(MatchError(ContainSubstring("creating discussion thread")))
	})

	Describe("AssistantsFromConfig", func() {
		It("maps role names to roles", func() {
			ids, err := backend.AssistantsFromConfig(map[string]string{"CEO": "asst_1", "cfo": "asst_2"})

			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal(map[model.Role]string{model.RoleCEO: "asst_1", model.RoleCFO: "asst_2"}))
		})

		It("rejects unknown roles", func() {
			_, err := backend.AssistantsFromConfig(map[string]string{"COO": "asst_1"})
			Expect(err).To(HaveOccurred())
		})
	})
})
