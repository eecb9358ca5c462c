package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/auth"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	grpcserver "messenger-service/internal/grpc"
	"messenger-service/internal/handlers"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/storage"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName(), cfg.Environment)
	if err != nil {
		logger.WithError(err).Fatal("failed to init tracing")
	}

	database, err := db.Connect(cfg.DatabaseDSN, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to db")
	}
	defer database.Close()

	media, err := storage.NewDiskMediaStore(cfg.MediaRoot, cfg.MediaBaseURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to prepare media storage")
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	logger.WithFields(logrus.Fields{
		"mode":   rabbitmq.PublisherMode(publisher),
		"reason": rabbitmq.PublisherNoopReason(publisher),
	}).Info("event publisher ready")

	clock := clockwork.NewRealClock()
	audit := telemetry.NewAuditEmitter(publisher, telemetry.AuditConfig{
		RoutingKey:  cfg.AuditRoutingKey,
		Service:     cfg.ServiceName(),
		Environment: cfg.Environment,
	}, clock, logger)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL, clock)
	hub := ws.NewHub(logger)

	deps := handlers.Deps{
		Users:    repositories.NewUserRepo(database),
		Chats:    repositories.NewChatRepo(database),
		Messages: repositories.NewMessageRepo(database),
		Statuses: repositories.NewStatusRepo(database),
		Media:    media,
		Hub:      hub,
		Tokens:   tokens,
		Audit:    audit,
		Clock:    clock,
		Logger:   logger,
	}

	authHandler := handlers.NewAuthHandler(deps)
	chatHandler := handlers.NewChatHandler(deps)
	statusHandler := handlers.NewStatusHandler(deps)
	chatWS := ws.NewChatWebSocketHandler(hub, deps.Chats, deps.Users, tokens, clock, logger)

	if cfg.Environment != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName()))
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.StaticFS(cfg.MediaBaseURL, afero.NewHttpFs(media.Fs()))

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)

	api := router.Group("/", middleware.AuthMiddleware(tokens))
	api.GET("/users/me", authHandler.Me)

	api.GET("/chats", chatHandler.ListChats)
	api.POST("/chats", chatHandler.CreateChat)
	api.GET("/chats/:chat_id", chatHandler.GetChat)
	api.DELETE("/chats/:chat_id", chatHandler.DeleteChat)
	api.GET("/chats/:chat_id/messages", chatHandler.ListMessages)
	api.POST("/chats/:chat_id/messages", chatHandler.SendMessage)
	api.POST("/chats/:chat_id/users", chatHandler.AddMembers)
	api.DELETE("/chats/:chat_id/users", chatHandler.RemoveMembers)
	api.POST("/chats/:chat_id/read", chatHandler.MarkRead)

	api.GET("/statuses", statusHandler.ListVisible)
	api.POST("/statuses", statusHandler.CreateStatus)
	api.GET("/statuses/mine", statusHandler.MyStatuses)
	api.PUT("/statuses/privacy", statusHandler.UpdatePrivacy)
	api.GET("/statuses/:status_id", statusHandler.ViewStatus)
	api.DELETE("/statuses/:status_id", statusHandler.DeleteStatus)

	handlers.RegisterDebugRoutes(api, audit, cfg.DebugRoutes)

	router.GET("/ws/chats/:chat_id", chatWS.Handle)

	grpcSrv := grpcserver.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.WithError(err).Fatal("failed to listen for grpc")
	}
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			logger.WithError(err).Error("grpc server stopped")
		}
	}()
	go grpcSrv.WatchDatabase(ctx, database, clock, cfg.HealthInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithField("port", cfg.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown incomplete")
	}
	grpcSrv.Stop()
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.WithError(err).Warn("tracer shutdown incomplete")
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithField("level", cfg.LogLevel).Warn("invalid log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
