package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	appsvc "lightgraph-rag/internal/app"
	"lightgraph-rag/internal/bootstrap"
	"lightgraph-rag/internal/repository"
	"lightgraph-rag/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(corsConfig(app.Config.App.CORSOrigins)))

	groupRepo := repository.NewGroupRepository(app.DB)
	docRepo := repository.NewDocumentRepository(app.DB)
	convRepo := repository.NewConversationRepository(app.DB)
	messageRepo := repository.NewMessageRepository(app.DB)

	groupService := appsvc.NewGroupService(groupRepo, docRepo, app.Registry, app.Publisher, app.Log)
	documentService := appsvc.NewDocumentService(groupRepo, docRepo, app.Registry, app.Publisher, app.Log)
	queryService := appsvc.NewQueryService(groupRepo, app.Registry, app.Log)
	conversationService := appsvc.NewConversationService(
		groupRepo, convRepo, messageRepo,
		app.Registry, app.HistoryCache, app.Publisher,
		app.Config.Engine.MaxHistoryTurns, app.Log,
	)
	healthService := appsvc.NewHealthService(
		app.Backend,
		app.Config.Ollama.Model,
		app.Config.Ollama.EmbedModel,
		app.Config.App.Version,
		time.Duration(app.Config.Ollama.HealthTimeoutSeconds)*time.Second,
		app.Log,
	)

	handler.RegisterRoutes(router,
		handler.NewHealthHandler(healthService),
		handler.NewGroupHandler(groupService),
		handler.NewDocumentHandler(documentService),
		handler.NewQueryHandler(queryService),
		handler.NewConversationHandler(conversationService),
	)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
