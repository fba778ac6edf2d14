package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"realtime-service/internal/auth"
	"realtime-service/internal/call"
	"realtime-service/internal/db"
	"realtime-service/internal/delivery"
	"realtime-service/internal/directory"
	"realtime-service/internal/handlers"
	"realtime-service/internal/lifecycle"
	"realtime-service/internal/middleware"
	"realtime-service/internal/observability"
	"realtime-service/internal/rabbitmq"
	"realtime-service/internal/registry"
	"realtime-service/internal/repositories"
	"realtime-service/internal/telemetry"
	"realtime-service/internal/ws"
)

func main() {
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "realtime-service")
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	sessionRegistry := registry.New(ctx, redisClient)

	publisher := rabbitmq.NewPublisher(os.Getenv("AMQP_URL"), getEnv("AMQP_EXCHANGE", "realtime.events"))
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, getEnv("AUDIT_ROUTING_KEY", "audit.logs"),
		"realtime-service", getEnv("ENVIRONMENT", "development"))

	verifier, err := auth.NewVerifierFromEnv()
	if err != nil {
		log.Fatalf("failed to configure auth: %v", err)
	}

	userRepo := repositories.NewUserRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	callRepo := repositories.NewCallRepo(database)

	dir := directory.New(conversationRepo)
	hub := ws.NewHub()
	pipeline := delivery.New(conversationRepo, messageRepo, sessionRegistry, hub)
	coordinator := lifecycle.New(sessionRegistry, userRepo, messageRepo, dir, hub)
	callController := call.New(sessionRegistry, userRepo, callRepo, dir)

	conversationHandler := handlers.NewConversationHandler(dir, userRepo, audit)
	messageHandler := handlers.NewMessageHandler(pipeline, messageRepo, dir)
	gateway := ws.NewGateway(hub, verifier, coordinator, pipeline, callController, audit)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("realtime-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/conversations", authMiddleware, conversationHandler.List)
	router.POST("/conversations/direct", authMiddleware, conversationHandler.StartDirect)
	router.POST("/conversations/group", authMiddleware, conversationHandler.CreateGroup)
	router.GET("/conversations/:conversation_id/participants", authMiddleware, conversationHandler.Participants)
	router.POST("/conversations/:conversation_id/participants", authMiddleware, conversationHandler.AddParticipant)
	router.DELETE("/conversations/:conversation_id/participants/:user_id", authMiddleware, conversationHandler.RemoveParticipant)

	router.GET("/conversations/:conversation_id/messages", authMiddleware, messageHandler.List)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, messageHandler.Post)
	router.POST("/messages/:message_id/read", authMiddleware, messageHandler.MarkRead)

	router.GET("/ws/direct", gateway.HandleDirect)
	router.GET("/ws/group", gateway.HandleGroup)
	router.GET("/ws/call", gateway.HandleCall)

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
