package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/fanout"
	"messaging-service/internal/guard"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/moderation"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/ratelimit"
	"messaging-service/internal/repositories"
	"messaging-service/internal/store"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/thread"
	"messaging-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownTracing, err := observability.SetupTracing(context.Background(), cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	auditEmitter := telemetry.NewAuditEmitter(publisher, rabbitmq.KeyAudit, "messaging-service", cfg.Environment)

	userRepo := repositories.NewUserRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)

	hub := ws.NewHub()
	fo := fanout.New(hub, rabbitmq.NewEventSubscriber(publisher))
	messageStore := store.NewMessageStore(database, fo)

	accessGuard := guard.New(guard.TimeWindow{
		StartHour: cfg.MessageWindowStartHour,
		EndHour:   cfg.MessageWindowEndHour,
	})
	filter := moderation.NewFilter(cfg.ModerationDenylist)
	limiter := ratelimit.NewLimiter(
		ratelimit.NewSQLCounterStore(database),
		cfg.RateLimitMax,
		time.Duration(cfg.RateLimitWindowSeconds)*time.Second,
	)
	threads := thread.NewRetriever(messageRepo)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)

	messageHandler := handlers.NewMessageHandler(conversationRepo, messageRepo, messageStore,
		accessGuard, filter, limiter, threads, auditEmitter)
	conversationHandler := handlers.NewConversationHandler(conversationRepo, messageRepo, messageStore,
		accessGuard, auditEmitter)
	userHandler := handlers.NewUserHandler(messageRepo, notificationRepo, messageStore, auditEmitter)
	notifyWS := ws.NewNotificationStreamHandler(hub)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("messaging-service"))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.IdentityMiddleware(jwtManager, userRepo))

	router.POST("/conversations", conversationHandler.CreateConversation)
	router.GET("/conversations/:conversation_id/messages", conversationHandler.ListMessages)
	router.POST("/conversations/:conversation_id/messages", messageHandler.PostMessage)
	router.DELETE("/conversations/:conversation_id", conversationHandler.DeleteConversation)

	router.PATCH("/messages/:message_id", messageHandler.EditMessage)
	router.DELETE("/messages/:message_id", messageHandler.DeleteMessage)
	router.POST("/messages/:message_id/read", messageHandler.MarkMessageRead)
	router.GET("/messages/:message_id/thread", messageHandler.GetThread)
	router.GET("/messages/:message_id/history", messageHandler.GetHistory)

	router.GET("/users/:user_id/unread", userHandler.GetUnread)
	router.GET("/users/:user_id/notifications", userHandler.GetNotifications)
	router.DELETE("/users/:user_id", userHandler.DeleteUser)
	router.POST("/notifications/:notification_id/read", userHandler.MarkNotificationRead)

	router.GET("/ws/notifications", notifyWS.Handle)

	if cfg.DebugRoutes {
		router.GET("/debug/ws", func(c *gin.Context) {
			c.JSON(200, gin.H{"connected_users": hub.ConnectedUsers()})
		})
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if err := router.Run(cfg.Addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
