package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the full API surface on the router. The server
// and the handler tests both wire through here.
func RegisterRoutes(
	router gin.IRouter,
	health *HealthHandler,
	group *GroupHandler,
	document *DocumentHandler,
	query *QueryHandler,
	conversation *ConversationHandler,
) {
	router.GET("/health", health.Check)

	groups := router.Group("/groups")
	groups.POST("", group.Create)
	groups.GET("", group.List)
	groups.GET("/:group_id", group.Get)
	groups.PATCH("/:group_id", group.Update)
	groups.DELETE("/:group_id", group.Delete)

	groups.POST("/:group_id/documents", document.Insert)
	groups.POST("/:group_id/documents/upload", document.Upload)
	groups.GET("/:group_id/documents", document.List)
	groups.GET("/:group_id/documents/:document_id", document.Get)

	groups.POST("/:group_id/query", query.Query)
	groups.POST("/:group_id/query/stream", query.QueryStream)

	groups.POST("/:group_id/conversations", conversation.Create)
	groups.GET("/:group_id/conversations", conversation.List)
	groups.GET("/:group_id/conversations/:conversation_id", conversation.GetHistory)
	groups.POST("/:group_id/conversations/:conversation_id/chat", conversation.Chat)
	groups.DELETE("/:group_id/conversations/:conversation_id", conversation.Delete)
}
