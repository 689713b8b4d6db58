package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/boardroom/internal/http/handler"
)

func DiscussionRouter(rg *gin.RouterGroup, h *handler.DiscussionHandler) {
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.DELETE("/:id", h.Cancel)
	rg.GET("/:id/stream", h.Stream)
	rg.POST("/:id/summary", h.Summary)
	rg.GET("/:id/attempts", h.Attempts)
}
