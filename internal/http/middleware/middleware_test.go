package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/boardroom/internal/http/middleware"
)

var _ = Describe("middleware", func() {
	var (
		engine   *gin.Engine
		logs     *bytes.Buffer
		previous *slog.Logger
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		previous = slog.Default()
		logs = &bytes.Buffer{}
		slog.SetDefault(slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

		engine = gin.New()
		engine.Use(middleware.Recovery(), middleware.Logger())
		engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
		engine.GET("/api/v1/discussions/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
		engine.GET("/panic", func(*gin.Context) { panic("boom") })
	})

	AfterEach(func() {
		slog.SetDefault(previous)
	})

	serve := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	records := func() []map[string]any {
		var out []map[string]any
		for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
			if line == "" {
				continue
			}
			var rec map[string]any
			Expect(json.Unmarshal([]byte(line), &rec)).To(Succeed())
			out = append(out, rec)
		}
		return out
	}

	It("turns panics into a 500 error payload", func() {
		w := serve("/panic")

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).To(ContainSubstring(`"error":"internal server error"`))
		Expect(records()).To(ContainElement(HaveKeyWithValue("msg", "panic recovered")))
	})

	It("logs client errors at warn with the discussion id", func() {
		serve("/api/v1/discussions/42?wait=true")

		recs := records()
		Expect(recs).To(HaveLen(1))
		Expect(recs[0]).To(HaveKeyWithValue("level", "WARN"))
		Expect(recs[0]).To(HaveKeyWithValue("discussion_id", "42"))
		Expect(recs[0]).To(HaveKeyWithValue("route", "/api/v1/discussions/:id"))
		Expect(recs[0]).To(HaveKeyWithValue("path", "/api/v1/discussions/42?wait=true"))
	})

	It("logs health checks at debug", func() {
		serve("/health")

		recs := records()
		Expect(recs).To(HaveLen(1))
		Expect(recs[0]).To(HaveKeyWithValue("level", "DEBUG"))
	})
})
