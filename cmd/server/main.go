package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	http_adapter "github.com/JoeShih716/go-wallet-ledger/internal/app/core/adapter/in/http"
	kafka_adapter "github.com/JoeShih716/go-wallet-ledger/internal/app/core/adapter/out/kafka"
	memory_adapter "github.com/JoeShih716/go-wallet-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-wallet-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-wallet-ledger/pkg/mysql"
	"github.com/JoeShih716/go-wallet-ledger/pkg/wal"
)

type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	// Backend 選擇帳本實作: "memory" | "mysql"
	Backend string `yaml:"backend"`
	WALPath string `yaml:"walPath"`

	NotifyBuffer int `yaml:"notifyBuffer"`

	MySQL mysql.Config `yaml:"mysql"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env vars")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 1. 載入設定
	cfg := loadConfig()

	// 2. 依設定初始化帳本 (Driven Adapter)
	var (
		ledger        usecase.Ledger
		notifications usecase.NotificationStore
		storageSink   usecase.NotificationSink
	)
	switch cfg.Backend {
	case "mysql":
		dbClient, err := mysql.NewClient(cfg.MySQL, logger)
		if err != nil {
			logger.Fatal("failed to connect to mysql", zap.Error(err))
		}
		defer dbClient.Close()

		repo := mysql_adapter.NewMySQLLedger(dbClient)
		if err := repo.Migrate(); err != nil {
			logger.Fatal("failed to migrate schema", zap.Error(err))
		}
		ledger, notifications, storageSink = repo, repo, repo
		logger.Info("using mysql ledger")
	case "memory":
		walFile, err := wal.Open(cfg.WALPath)
		if err != nil {
			logger.Fatal("failed to open wal", zap.Error(err))
		}
		defer walFile.Close()

		memLedger, err := memory_adapter.NewMutexLedger(walFile)
		if err != nil {
			logger.Fatal("failed to init memory ledger", zap.Error(err))
		}
		ledger, notifications, storageSink = memLedger, memLedger, memLedger
		logger.Info("using memory ledger", zap.String("wal", cfg.WALPath))
	default:
		logger.Fatal("invalid backend", zap.String("backend", cfg.Backend))
	}

	// 3. 通知出口：先落盤，Kafka 可選
	sinks := []usecase.NotificationSink{storageSink}
	if cfg.Kafka.Enabled {
		publisher := kafka_adapter.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		sinks = append(sinks, publisher)
		logger.Info("kafka notification sink enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}
	dispatcher := usecase.NewDispatcher(cfg.NotifyBuffer, logger, sinks...)

	// 4. 初始化 UseCase 與 HTTP Adapter (Driving Adapter)
	core := usecase.NewCoreUseCase(ledger, notifications, dispatcher, logger)
	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: http_adapter.NewServer(core, logger).Router(),
	}

	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	// 把佇列中的通知送完再離開
	dispatcher.Close()
	logger.Info("server exited")
}

func loadConfig() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}

	cfgData, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	// 補全預設配置 (如果 yaml 沒寫)
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.WALPath == "" {
		cfg.WALPath = "wal.log"
	}
	if cfg.NotifyBuffer == 0 {
		cfg.NotifyBuffer = 1024
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.MySQL.ConnMaxLifetime == 0 {
		cfg.MySQL.ConnMaxLifetime = 30 * time.Minute
	}
	return cfg
}
