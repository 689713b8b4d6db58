package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/boardroom/internal/broadcast"
	"basegraph.app/boardroom/internal/fallback"
	"basegraph.app/boardroom/internal/http/router"
	"basegraph.app/boardroom/internal/model"
	"basegraph.app/boardroom/internal/service"
)

var _ = Describe("DiscussionHandler", func() {
	var (
		engine *gin.Engine
		svc    *mockDiscussionService
		hub    *broadcast.Hub
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		engine = gin.New()
		svc = &mockDiscussionService{}
		hub = broadcast.NewHub(0)
		router.SetupRoutes(engine, router.RouterConfig{Discussions: svc, Subscriber: hub})
	})

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) map[string]any {
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	Describe("POST /api/v1/discussions", func() {
		It("starts a discussion in the background", func() {
			var got service.StartRequest
			svc.startFn = func(_ context.Context, req service.StartRequest) (*model.DiscussionState, error) {
				got = req
				return &model.DiscussionState{ID: 1234567890123, Status: model.DiscussionStatusPending}, nil
			}

			w := do(http.MethodPost, "/api/v1/discussions", map[string]any{"topic": "Q4 budget", "roles": []string{"CEO", "CFO"}})

			Expect(w.Code).To(Equal(http.StatusAccepted))
			resp := decode(w)
			Expect(resp["id"]).To(Equal("1234567890123"))
			Expect(resp["status"]).To(Equal("pending"))
			Expect(got.Topic).To(Equal("Q4 budget"))
			Expect(got.Roles).To(Equal([]string{"CEO", "CFO"}))
			Expect(svc.runCount).To(Equal(0))
		})

		It("returns 400 with field details on validation errors", func() {
			svc.startFn = func(context.Context, service.StartRequest) (*model.DiscussionState, error) {
				return nil, &service.ValidationError{Fields: map[string]string{"roles": "at least one role is required"}}
			}

			w := do(http.MethodPost, "/api/v1/discussions", map[string]any{"topic": "Q4 budget", "roles": []string{}})

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			resp := decode(w)
			Expect(resp["error"]).To(Equal("invalid request"))
			Expect(resp["details"]).To(HaveKeyWithValue("roles", "at least one role is required"))
		})

		It("returns 400 on a malformed body", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/discussions", strings.NewReader(`{`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(svc.startCount).To(Equal(0))
		})

		It("returns 429 when too many discussions run", func() {
			svc.startFn = func(context.Context, service.StartRequest) (*model.DiscussionState, error) {
				return nil, service.ErrTooManyDiscussions
			}

			w := do(http.MethodPost, "/api/v1/discussions", map[string]any{"topic": "t", "roles": []string{"CEO"}})
			Expect(w.Code).To(Equal(http.StatusTooManyRequests))
		})

		It("waits for the result when asked to", func() {
			svc.runFn = func(context.Context, service.StartRequest) (*model.DiscussionState, error) {
				return &model.DiscussionState{
					ID:     5,
					Status: model.DiscussionStatusCompleted,
					Turns:  []model.Turn{{Role: model.RoleCEO, Text: "Go.", SequenceIndex: 0}},
				}, nil
			}

			w := do(http.MethodPost, "/api/v1/discussions?wait=true", map[string]any{"topic": "t", "roles": []string{"CEO"}})

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["status"]).To(Equal("completed"))
			Expect(resp["turns"]).To(HaveLen(1))
			Expect(svc.startCount).To(Equal(0))
		})

		It("returns 502 naming the failed role when a waited discussion fails", func() {
			svc.runFn = func(context.Context, service.StartRequest) (*model.DiscussionState, error) {
				return &model.DiscussionState{
					ID:     5,
					Status: model.DiscussionStatusFailed,
					Turns:  []model.Turn{{Role: model.RoleCEO, Text: "Go."}},
					Failure: &model.DiscussionFailure{
						Role:    model.RoleCFO,
						Reason:  "backends_exhausted",
						Message: "CFO turn 1 failed: all 2 backend candidates failed",
						Causes:  []string{"a", "b"},
					},
				}, nil
			}

			w := do(http.MethodPost, "/api/v1/discussions?wait=true", map[string]any{"topic": "t", "roles": []string{"CEO", "CFO"}})

			Expect(w.Code).To(Equal(http.StatusBadGateway))
			resp := decode(w)
			Expect(resp["error"]).To(ContainSubstring("CFO turn 1 failed"))
			details := resp["details"].(map[string]any)
			failure := details["failure"].(map[string]any)
			Expect(failure["role"]).To(Equal("CFO"))
			Expect(failure["causes"]).To(HaveLen(2))
		})
	})

	Describe("GET /api/v1/discussions/:id", func() {
		It("returns the snapshot", func() {
			w := do(http.MethodGet, "/api/v1/discussions/77", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["id"]).To(Equal("77"))
			Expect(resp["turns"]).To(BeEmpty())
		})

		It("returns 404 for unknown discussions", func() {
			svc.getFn = func(context.Context, int64) (*model.DiscussionState, error) {
				return nil, service.ErrNotFound
			}

			w := do(http.MethodGet, "/api/v1/discussions/77", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for malformed ids", func() {
			w := do(http.MethodGet, "/api/v1/discussions/not-a-number", nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("DELETE /api/v1/discussions/:id", func() {
		It("requests cancellation", func() {
			var cancelled int64
			svc.cancelFn = func(_ context.Context, id int64) (*model.DiscussionState, error) {
				cancelled = id
				return &model.DiscussionState{ID: id, Status: model.DiscussionStatusInProgress}, nil
			}

			w := do(http.MethodDelete, "/api/v1/discussions/9", nil)

			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(cancelled).To(Equal(int64(9)))
		})
	})

	Describe("POST /api/v1/discussions/:id/summary", func() {
		It("returns the summary", func() {
			w := do(http.MethodPost, "/api/v1/discussions/9/summary", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["summary"]).To(Equal("ok"))
		})

		DescribeTable("maps summary errors",
			func(err error, status int) {
				svc.summarizeFn = func(context.Context, int64) (*model.Summary, error) {
					return nil, err
				}

				w := do(http.MethodPost, "/api/v1/discussions/9/summary", nil)
				Expect(w.Code).To(Equal(status))
			},
			Entry("not completed", service.ErrNotCompleted, http.StatusConflict),
			Entry("disabled", service.ErrSummaryDisabled, http.StatusNotImplemented),
			Entry("not found", service.ErrNotFound, http.StatusNotFound),
			Entry("exhausted", &fallback.AllBackendsExhaustedError{}, http.StatusBadGateway),
			Entry("unexpected", errors.New("boom"), http.StatusInternalServerError),
		)
	})

	Describe("GET /api/v1/discussions/:id/attempts", func() {
		It("lists attempts", func() {
			svc.attemptsFn = func(context.Context, int64) ([]model.GenerationAttempt, error) {
				return []model.GenerationAttempt{{ID: 3, Candidate: "openai:gpt-4o", Outcome: model.AttemptOutcomeSuccess}}, nil
			}

			w := do(http.MethodGet, "/api/v1/discussions/9/attempts", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["attempts"]).To(HaveLen(1))
		})
	})

	Describe("GET /api/v1/discussions/:id/stream", func() {
		It("streams events in order and ends after the terminal event", func() {
			ctx := context.Background()
			Expect(hub.Publish(ctx, 9, model.Event{Type: model.EventTurnStarted, DiscussionID: 9, Role: model.RoleCEO})).To(Succeed())
			Expect(hub.Publish(ctx, 9, model.Event{Type: model.EventTurnCompleted, DiscussionID: 9, Role: model.RoleCEO,
				Turn: &model.Turn{Role: model.RoleCEO, Text: "Go."}})).To(Succeed())
			Expect(hub.Publish(ctx, 9, model.Event{Type: model.EventDiscussionCompleted, DiscussionID: 9})).To(Succeed())

			w := do(http.MethodGet, "/api/v1/discussions/9/stream", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(Equal("text/event-stream"))
			body := w.Body.String()
			Expect(body).To(HavePrefix("event: ping\ndata: ready\n\n"))

			started := strings.Index(body, "event: turn_started")
			completed := strings.Index(body, "event: turn_completed")
			finished := strings.Index(body, "event: discussion_completed")
			Expect(started).To(BeNumerically(">", 0))
			Expect(completed).To(BeNumerically(">", started))
			Expect(finished).To(BeNumerically(">", completed))
			Expect(body).To(ContainSubstring("id: 3\n"))
			Expect(body).To(ContainSubstring(`"text":"Go."`))
		})

		It("resumes after last_id", func() {
			ctx := context.Background()
			Expect(hub.Publish(ctx, 9, model.Event{Type: model.EventTurnStarted})).To(Succeed())
			Expect(hub.Publish(ctx, 9, model.Event{Type: model.EventDiscussionFailed})).To(Succeed())

			w := do(http.MethodGet, "/api/v1/discussions/9/stream?last_id=1", nil)

			Expect(w.Body.String()).NotTo(ContainSubstring("event: turn_started"))
			Expect(w.Body.String()).To(ContainSubstring("event: discussion_failed"))
		})

		It("returns 404 for unknown discussions", func() {
			svc.getFn = func(context.Context, int64) (*model.DiscussionState, error) {
				return nil, service.ErrNotFound
			}

			w := do(http.MethodGet, "/api/v1/discussions/9/stream", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 503 without a subscriber", func() {
			engine = gin.New()
			router.SetupRoutes(engine, router.RouterConfig{Discussions: svc})

			w := do(http.MethodGet, "/api/v1/discussions/9/stream", nil)
			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		})
	})

	It("serves a health check", func() {
		w := do(http.MethodGet, "/health", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w)["status"]).To(Equal("ok"))
	})
})
