package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"paperchat/internal/ai"
	appsvc "paperchat/internal/app"
	"paperchat/internal/bootstrap"
	"paperchat/internal/cache"
	"paperchat/internal/platform/qdrant"
	"paperchat/internal/platform/rabbitmq"
	"paperchat/internal/repository"
	"paperchat/internal/transport/http/handler"
	"paperchat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	documentRepo := repository.NewDocumentRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)

	aiClient := ai.NewClient(ai.Config{
		BaseURL:        app.Config.LLM.BaseURL,
		APIKey:         app.Config.LLM.APIKey,
		ChatModel:      app.Config.LLM.Model,
		EmbeddingModel: app.Config.LLM.EmbeddingModel,
	})
	vectorIndex := qdrant.NewClient(qdrant.Config{
		URL:     app.Config.Vector.URL,
		APIKey:  app.Config.Vector.APIKey,
		Timeout: time.Duration(app.Config.Vector.TimeoutSeconds) * time.Second,
	})
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	messagePublisher := rabbitmq.NewMessagePublisher(app.MQConn, app.Config.RabbitMQ.MessagePersistQueue)
	fetcher := appsvc.NewHTTPFileFetcher(time.Duration(app.Config.Ingest.FetchTimeoutSeconds) * time.Second)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	ingestService := appsvc.NewIngestService(documentRepo, aiClient, vectorIndex, fetcher, appsvc.IngestOptions{
		ChunkSizeChars:   app.Config.Ingest.ChunkSizeChars,
		ExcerptBytes:     app.Config.Ingest.ExcerptBytes,
		EmbedDim:         app.Config.LLM.EmbeddingDim,
		EmbedConcurrency: app.Config.Ingest.EmbedConcurrency,
		UpsertBatchSize:  app.Config.Ingest.UpsertBatchSize,
	})
	chatService := appsvc.NewChatService(
		documentRepo,
		messageRepo,
		messagePublisher,
		historyCache,
		aiClient,
		vectorIndex,
		aiClient,
		appsvc.ChatOptions{
			TopK:          app.Config.Chat.TopK,
			HistoryWindow: app.Config.Chat.HistoryWindow,
			PageSize:      app.Config.Chat.PageSize,
		},
	)

	authHandler := handler.NewAuthHandler(authService)
	fileHandler := handler.NewFileHandler(ingestService, authService)
	messageHandler := handler.NewMessageHandler(chatService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	fileGroup := v1.Group("/files")
	fileGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	fileGroup.POST("/upload-complete", fileHandler.UploadComplete)
	fileGroup.GET("", fileHandler.ListFiles)
	fileGroup.GET("/:id", fileHandler.GetFile)
	fileGroup.POST("/:id/retry", fileHandler.Retry)
	fileGroup.POST("/:id/messages", messageHandler.Stream)
	fileGroup.GET("/:id/messages", messageHandler.ListMessages)

	return router
}
