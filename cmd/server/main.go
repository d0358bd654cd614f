// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/ZahraKhan-147/study-bot/internal/config"
	"github.com/ZahraKhan-147/study-bot/internal/handler"
	"github.com/ZahraKhan-147/study-bot/internal/middleware"
	"github.com/ZahraKhan-147/study-bot/internal/repository"
	"github.com/ZahraKhan-147/study-bot/internal/service"
	"github.com/ZahraKhan-147/study-bot/pkg/database"
	"github.com/ZahraKhan-147/study-bot/pkg/kafka"
	"github.com/ZahraKhan-147/study-bot/pkg/llm"
	"github.com/ZahraKhan-147/study-bot/pkg/log"
)

func main() {
	// 1. 加载配置：必填项缺失时直接终止，不进入服务状态
	cfg, err := config.Init(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化外部客户端（依赖注入，不使用包级全局变量）
	ctx := context.Background()
	mongoClient, err := database.NewMongoClient(ctx, cfg.Mongo.URI)
	if err != nil {
		log.Fatal("MongoDB 连接失败", err)
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()
	log.Info("MongoDB 连接成功")

	// Redis 为可选的窗口缓存，未配置或连接失败时降级为直连 Mongo
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = database.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warnf("Redis 连接失败，禁用窗口缓存: %v", err)
			redisClient = nil
		} else {
			defer func() {
				_ = redisClient.Close()
			}()
			log.Info("Redis 客户端连接成功")
		}
	}

	coll := mongoClient.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)

	// Kafka 为可选的轮次事件发布端，未配置 brokers 时跳过
	var publisher service.TurnEventPublisher
	var producer *kafka.Producer
	if cfg.Kafka.Brokers != "" {
		producer = kafka.NewProducer(cfg.Kafka)
		publisher = producer
		defer func() {
			_ = producer.Close()
		}()
		log.Info("Kafka 生产者初始化成功")
	}

	// 4. 初始化 Repository 与 Service（依赖注入）
	conversationRepo := repository.NewConversationRepository(coll, redisClient)
	llmClient := llm.NewClient(cfg.LLM)
	chatService := service.NewChatService(conversationRepo, llmClient, publisher)
	conversationService := service.NewConversationService(conversationRepo)

	// 5. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	}))

	// 6. 注册路由
	r.GET("/", handler.Welcome)
	r.POST("/chat", handler.NewChatHandler(chatService).Chat)
	r.GET("/conversation/:conversationId", handler.NewConversationHandler(conversationService).Get)

	// 7. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

// configPath 返回配置文件路径：优先 CONFIG_PATH 环境变量，
// 其次是默认的 ./configs/config.yaml（存在时），否则仅用环境变量与默认值。
func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	const defaultPath = "./configs/config.yaml"
	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath
	}
	return ""
}
