package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/boardroom/internal/broadcast"
	"basegraph.app/boardroom/internal/http/handler"
	"basegraph.app/boardroom/internal/service"
)

type RouterConfig struct {
	Discussions service.DiscussionService
	// Subscriber backs the event stream; nil disables it.
	Subscriber broadcast.Subscriber
}

func SetupRoutes(router *gin.Engine, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		discussionHandler := handler.NewDiscussionHandler(cfg.Discussions, cfg.Subscriber)
		DiscussionRouter(v1.Group("/discussions"), discussionHandler)
	}
}
