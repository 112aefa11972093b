package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"live-fixture-service/config"
	"live-fixture-service/database"
	"live-fixture-service/logger"
	"live-fixture-service/pkg/obs"
	"live-fixture-service/services"
	"live-fixture-service/web"
)

func main() {
	logger.Println("Starting Live Fixture Service...")

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := obs.Setup(ctx, "live-fixture-service", cfg.OTelEndpoint)
	if err != nil {
		logger.Errorf("[OTel] ⚠️ Tracing disabled: %v", err)
	}
	defer shutdownTracing(context.Background())

	// 连接数据库
	dialect, err := database.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	db, err := database.Connect(dialect, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 运行数据库迁移
	if err := database.Migrate(db, dialect); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Printf("Database connected and migrated (%s)", dialect)

	store := database.NewSQLStore(db, dialect)

	// 飞书告警
	larkNotifier := services.NewLarkNotifier(cfg.LarkWebhook)

	// WebSocket Hub
	wsHub := web.NewHub(cfg.ClockTick)
	go wsHub.Run(ctx)

	sinks := []services.ProjectionSink{wsHub}
	opts := []services.ControllerOption{services.WithAlerter(larkNotifier)}

	// MQTT 保留消息
	if cfg.MQTTBroker != "" {
		mqttPublisher := services.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTUsername, cfg.MQTTPassword, cfg.MQTTTopicPrefix)
		if err := mqttPublisher.Connect(); err != nil {
			logger.Errorf("[MQTT] ❌ Failed to connect: %v", err)
			larkNotifier.AlertError("MQTT", err.Error())
		} else {
			defer mqttPublisher.Disconnect()
			sinks = append(sinks, mqttPublisher)
		}
	} else {
		logger.Println("[MQTT] Disabled (no broker configured)")
	}

	// AMQP: 比赛快照 + 阵容通知
	if cfg.AMQPURL != "" {
		amqpPublisher := services.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err := amqpPublisher.Connect(); err != nil {
			logger.Errorf("[AMQP] ❌ Failed to connect: %v", err)
			larkNotifier.AlertError("AMQP", err.Error())
		} else {
			defer amqpPublisher.Close()
			sinks = append(sinks, amqpPublisher)
			opts = append(opts, services.WithLineup(services.NewLineupPublisher(amqpPublisher)))
		}
	} else {
		// 本地开发: 阵容通知只在进程内投递并记录日志
		logger.Println("[AMQP] Disabled (no URL configured), lineup notices stay in-process")
		broker := services.NewInMemoryBroker()
		defer broker.Close()
		notices, _ := broker.Consume(services.RoutingKeyLineupSubstitution)
		go func() {
			for msg := range notices {
				logger.Printf("[Lineup] %s", msg.Value)
			}
		}()
		opts = append(opts, services.WithLineup(services.NewLineupPublisher(broker)))
	}

	// 名单
	roster := services.NewRosterService(store, cfg.RosterCacheTTL)
	defer roster.Close()
	opts = append(opts, services.WithRoster(roster), services.WithSinks(sinks...))

	controller := services.NewLiveMatchController(store, opts...)

	server := web.NewServer(cfg, controller, roster, wsHub)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			larkNotifier.AlertError("Web Server", err.Error())
			logger.Fatalf("Web server error: %v", err)
		}
	}()

	sinkNames := make([]string, 0, len(sinks))
	for _, sink := range sinks {
		sinkNames = append(sinkNames, sink.Name())
	}
	if err := larkNotifier.NotifyServiceStart(cfg.Environment, sinkNames); err != nil {
		logger.Errorf("Failed to send startup notification: %v", err)
	}

	logger.Println("Service is running. Press Ctrl+C to stop.")

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("Shutting down service...")

	server.Stop()
	cancel()

	logger.Println("Service stopped")
}
