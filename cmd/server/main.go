package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JsonMa/erp/internal/config"
	"github.com/JsonMa/erp/internal/model"
	"github.com/JsonMa/erp/internal/mq"
	"github.com/JsonMa/erp/internal/repository"
	"github.com/JsonMa/erp/internal/server"
	"github.com/JsonMa/erp/internal/service"
	"github.com/JsonMa/erp/pkg/jpush"
	"github.com/JsonMa/erp/pkg/wechat"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Infof("配置加载成功, HTTP 端口: %d, 商户号: %s", cfg.HTTPPort, cfg.WechatMchID)

	// 2. 连接数据库（Silent 模式不输出 SQL，只有错误时输出）
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("连接数据库失败: %v", err)
	}
	log.Info("数据库连接成功")

	// 自动迁移
	if err := db.AutoMigrate(
		&model.User{},
		&model.Commodity{},
		&model.Order{},
		&model.Trade{},
		&model.Logistics{},
		&model.Notification{},
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Info("数据库迁移完成")

	// 3. 连接 RabbitMQ
	mqClient, err := mq.NewRabbitMQ(cfg.RabbitMQURL, cfg.TradeExpireMinutes)
	if err != nil {
		log.Fatalf("连接 RabbitMQ 失败: %v", err)
	}
	defer mqClient.Close()

	// 4. 初始化 Repository
	orderRepo := repository.NewOrderRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	logisticsRepo := repository.NewLogisticsRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)
	commodityRepo := repository.NewCommodityRepository(db)

	// 5. 初始化第三方客户端
	wechatClient := wechat.NewClient(wechat.Config{
		AppID:      cfg.WechatAppID,
		MchID:      cfg.WechatMchID,
		Key:        cfg.WechatKey,
		TradeType:  cfg.WechatTradeType,
		NotifyURL:  cfg.WechatNotifyURL,
		APIBaseURL: cfg.WechatAPIURL,
	})
	jpushClient := jpush.NewClient(jpush.Config{
		AppKey:       cfg.JPushAppKey,
		MasterSecret: cfg.JPushSecret,
		APIBaseURL:   cfg.JPushAPIURL,
	})

	// 6. 初始化 Service
	notificationService := service.NewNotificationService(notificationRepo, userRepo, jpushClient, cfg.JPushProduction)
	tradeService := service.NewTradeService(orderRepo, tradeRepo, commodityRepo, wechatClient, mqClient)
	logisticsService := service.NewLogisticsService(orderRepo, logisticsRepo, commodityRepo, notificationService)

	// 7. 创建可取消的 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 8. 启动 MQ 消费者
	service.NewTradeCloseConsumer(mqClient, tradeService).Start(ctx)
	service.NewTradeNotifyConsumer(mqClient, orderRepo, commodityRepo, notificationService).Start(ctx)

	// 9. 启动 HTTP 服务
	httpServer := server.NewHTTPServer(orderRepo, notificationRepo, tradeService, logisticsService, wechatClient, cfg.HTTPPort)
	go func() {
		log.Infof("HTTP 服务已启动，监听端口: %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务异常: %v", err)
		}
	}()

	// 10. 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Infof("收到退出信号: %v", sig)

	cancel()
	if err := httpServer.Shutdown(context.Background()); err != nil {
		log.Errorf("HTTP 服务关闭异常: %v", err)
	}
	log.Info("服务已优雅退出")
}
