package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gowa-keeper/config"
	"gowa-keeper/database"
	"gowa-keeper/internal/broker"
	"gowa-keeper/internal/handler"
	"gowa-keeper/internal/helper"
	customMiddleware "gowa-keeper/internal/middleware"
	"gowa-keeper/internal/model"
	"gowa-keeper/internal/notify"
	"gowa-keeper/internal/service"
	"gowa-keeper/internal/wa"
	"gowa-keeper/internal/ws"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func main() {

	// Load .env (ignore error if the file is absent, e.g. in production)
	_ = godotenv.Load()

	cfg := config.Load()

	// whatsmeow device container
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	database.InitWhatsmeow(cfg.DatabaseURL)

	// application database (instances + message log)
	if cfg.AppDBURL == "" {
		log.Fatal("APP_DATABASE_URL is not set")
	}
	database.InitAppDB(cfg.AppDBURL)

	if len(os.Args) > 1 && os.Args[1] == "--createschema" {
		if err := database.InitSchema(); err != nil {
			log.Fatalf("Failed to create schema: %v", err)
		}
		log.Println("✓ Schema created")
	}

	// feature flags (WEBHOOK & WEBSOCKET)
	config.EnableWebsocketEvents = strings.ToLower(os.Getenv("GOWA_ENABLE_WEBSOCKET_EVENTS")) == "true"
	config.EnableWebhook = strings.ToLower(os.Getenv("GOWA_ENABLE_WEBHOOK")) == "true"
	log.Printf("feature flags -> websocket_events: %v, webhook: %v",
		config.EnableWebsocketEvents, config.EnableWebhook)

	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET is not set")
	}
	service.InitAuthConfig(cfg.JWTSecret, cfg.AdminUsername, cfg.AdminPasswordHash)

	// Notification fan-out and its sinks
	notifier := notify.New()

	hub := ws.NewHub()
	go hub.Run()
	if config.EnableWebsocketEvents {
		if err := hub.Attach(notifier); err != nil {
			log.Fatalf("Failed to attach websocket hub: %v", err)
		}
	}

	if config.EnableWebhook {
		webhook := service.NewWebhookDispatcher(os.Getenv("WEBHOOK_URL"), os.Getenv("WEBHOOK_SECRET"))
		if err := webhook.Attach(notifier); err != nil {
			log.Fatalf("Failed to attach webhook dispatcher: %v", err)
		}
	}

	var amqpPub *broker.Publisher
	if cfg.AMQPURL != "" {
		pub, err := broker.New(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("Failed to connect to AMQP broker: %v", err)
		}
		if err := pub.Attach(notifier); err != nil {
			log.Fatalf("Failed to attach AMQP publisher: %v", err)
		}
		amqpPub = pub
	}

	messages := model.NewMessageLog()
	if err := model.AttachRecordSink(notifier, messages); err != nil {
		log.Fatalf("Failed to attach record sink: %v", err)
	}

	// Core wiring: factory over the shared device container, session store,
	// lifecycle manager.
	factory := wa.NewWhatsmeowFactory(database.Container, model.GetInstanceJID, messages)
	store := model.NewSessionStore(database.Container)
	manager := service.NewManager(cfg, factory, store, messages, notifier)

	log.Println("Recovering existing sessions...")
	if err := manager.RecoverExistingSessions(context.Background()); err != nil {
		log.Printf("Warning: session recovery failed: %v", err)
	}

	healthStop := make(chan struct{})
	reconnectStop := make(chan struct{})
	manager.StartHealthMonitor(healthStop)
	manager.StartAutoReconnector(reconnectStop)

	// Setup Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	originsEnv := os.Getenv("CORS_ALLOW_ORIGINS")
	if originsEnv == "" {
		log.Println("CORS_ALLOW_ORIGINS is not set")
	}
	allowOrigins := strings.Split(originsEnv, ",")
	for i, o := range allowOrigins {
		allowOrigins[i] = strings.TrimSpace(o)
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{
			echo.GET,
			echo.POST,
			echo.PUT,
			echo.PATCH,
			echo.DELETE,
			echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestedWith,
			echo.HeaderAuthorization,
		},
		AllowCredentials: true,
	}))
	e.OPTIONS("/*", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Rate limiter configuration from env
	rateLimit := helper.GetEnvAsInt("RATE_LIMIT_PER_SECOND", 10)
	rateBurst := helper.GetEnvAsInt("RATE_LIMIT_BURST", 10)
	rateWindow := helper.GetEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 3)

	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(rateLimit),
				Burst:     rateBurst,
				ExpiresIn: time.Duration(rateWindow) * time.Minute,
			},
		),
	}))

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		message := "Internal Server Error"
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			message = fmt.Sprintf("%v", he.Message)
		}
		response := map[string]interface{}{
			"success": false,
			"error":   message,
		}
		switch code {
		case http.StatusUnauthorized:
			response["message"] = "Authentication required. Please login first."
		case http.StatusMethodNotAllowed:
			response["message"] = "Method not allowed for this endpoint"
		case http.StatusNotFound:
			response["message"] = "Endpoint not found"
		}
		_ = c.JSON(code, response)
	}

	api := &handler.API{Manager: manager, Hub: hub, Cfg: cfg}

	// =====================================================
	// PUBLIC ROUTES (No authentication required)
	// =====================================================
	e.POST("/auth/login", api.Login)
	e.GET("/ws", handler.WebSocketHandler(hub))
	e.GET("/", func(c echo.Context) error { // Health check
		return c.JSON(200, map[string]interface{}{
			"success": true,
			"message": "Connection lifecycle manager is running",
			"version": "1.0.0",
		})
	})

	// =====================================================
	// INSTANCE ROUTES (JWT required)
	// =====================================================
	apiGroup := e.Group("/api", customMiddleware.JWTAuthMiddleware())

	apiGroup.POST("/instances", api.CreateInstance)
	apiGroup.GET("/instances/status", api.GetInstancesStatus)
	apiGroup.POST("/instances/:instanceId/initialize", api.InitializeInstance)
	apiGroup.DELETE("/instances/:instanceId", api.DestroyInstance)
	apiGroup.GET("/instances/:instanceId/status", api.GetInstanceStatus)
	apiGroup.GET("/instances/:instanceId/qr", api.GetQR)
	apiGroup.GET("/instances/:instanceId/qr.png", api.GetQRImage)
	apiGroup.POST("/instances/:instanceId/reconnect", api.ReconnectInstance)

	// Messaging
	apiGroup.POST("/instances/:instanceId/send", api.SendMessage)
	apiGroup.POST("/instances/:instanceId/send-media", api.SendMedia)
	apiGroup.GET("/instances/:instanceId/check/:number", api.CheckNumber)

	// Chats, contacts, groups
	apiGroup.GET("/instances/:instanceId/chats", api.GetChats)
	apiGroup.GET("/instances/:instanceId/chats/:chatId/messages", api.GetChatMessages)
	apiGroup.GET("/instances/:instanceId/contacts", api.GetContacts)
	apiGroup.GET("/instances/:instanceId/contacts/export", api.ExportContacts)
	apiGroup.POST("/instances/:instanceId/contacts/profiles", api.GetMultipleContactProfiles)
	apiGroup.GET("/instances/:instanceId/contacts/:contactId", api.GetContactProfile)
	apiGroup.GET("/instances/:instanceId/contacts/:contactId/about", api.GetContactAbout)
	apiGroup.GET("/instances/:instanceId/groups", api.GetGroups)
	apiGroup.GET("/instances/:instanceId/groups/:groupId", api.GetGroupInfo)

	log.Printf("Server starting on port %s, baseURL=%s", cfg.Port, cfg.BaseURL)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	// Ordered teardown: timers first, then keep-alives and clients, then the
	// registry. Nothing may fire against a half-destroyed instance.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	close(healthStop)
	close(reconnectStop)
	manager.Shutdown()
	notifier.Close()
	if amqpPub != nil {
		_ = amqpPub.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("✓ Shutdown complete")
}
