package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JsonMa/erp/internal/model"
	"github.com/JsonMa/erp/internal/mq"
	"github.com/JsonMa/erp/internal/repository"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// TradeCloseConsumer 消费延时队列死信，关闭超时未支付的交易
type TradeCloseConsumer struct {
	mqClient     *mq.RabbitMQ
	tradeService *TradeService
}

func NewTradeCloseConsumer(mqClient *mq.RabbitMQ, tradeService *TradeService) *TradeCloseConsumer {
	return &TradeCloseConsumer{
		mqClient:     mqClient,
		tradeService: tradeService,
	}
}

// Start 启动消费者（支持自动重连后重新订阅）
func (c *TradeCloseConsumer) Start(ctx context.Context) {
	go runConsumer(ctx, "交易关闭", c.mqClient, c.mqClient.ConsumeClose, c.handle)
}

func (c *TradeCloseConsumer) handle(msg amqp.Delivery) error {
	var data struct {
		TradeID string `json:"trade_id"`
	}
	if err := json.Unmarshal(msg.Body, &data); err != nil {
		// 无法解析的消息直接丢弃，重新投递也不会成功
		log.Errorf("解析关闭消息失败: %v", err)
		return nil
	}
	return c.tradeService.HandleExpiredTrade(data.TradeID)
}

// TradeNotifyConsumer 消费交易状态通知，向订单用户推送消息
type TradeNotifyConsumer struct {
	mqClient            *mq.RabbitMQ
	orderRepo           *repository.OrderRepository
	commodityRepo       *repository.CommodityRepository
	notificationService *NotificationService
}

func NewTradeNotifyConsumer(
	mqClient *mq.RabbitMQ,
	orderRepo *repository.OrderRepository,
	commodityRepo *repository.CommodityRepository,
	notificationService *NotificationService,
) *TradeNotifyConsumer {
	return &TradeNotifyConsumer{
		mqClient:            mqClient,
		orderRepo:           orderRepo,
		commodityRepo:       commodityRepo,
		notificationService: notificationService,
	}
}

// Start 启动消费者（支持自动重连后重新订阅）
func (c *TradeNotifyConsumer) Start(ctx context.Context) {
	go runConsumer(ctx, "交易通知", c.mqClient, c.mqClient.ConsumeNotify, c.handle)
}

func (c *TradeNotifyConsumer) handle(msg amqp.Delivery) error {
	var data mq.TradeNotifyMessage
	if err := json.Unmarshal(msg.Body, &data); err != nil {
		// 无法解析的消息直接丢弃，重新投递也不会成功
		log.Errorf("解析通知消息失败: %v", err)
		return nil
	}

	orderID, err := uuid.Parse(data.OrderID)
	if err != nil {
		return fmt.Errorf("非法的订单 ID %q: %w", data.OrderID, err)
	}
	order, err := c.orderRepo.FindByID(orderID)
	if err != nil {
		return err
	}
	commodity, err := c.commodityRepo.FindByID(order.CommodityID)
	if err != nil {
		return err
	}

	var message string
	switch data.Status {
	case model.TradeStatusSuccess:
		message = fmt.Sprintf("您购买的商品\"%s\"支付成功", commodity.Name)
	case model.TradeStatusClosed:
		message = fmt.Sprintf("您购买的商品\"%s\"的交易已关闭", commodity.Name)
	default:
		log.Warnf("忽略未知的交易通知状态 (交易: %s, status: %d)", data.TradeID, data.Status)
		return nil
	}

	_, err = c.notificationService.Send2Individual(context.Background(), order.UserID, model.NotificationTypeOrder, message)
	return err
}

// runConsumer 运行消费循环，通道关闭或订阅失败后等待重连并重新订阅
func runConsumer(
	ctx context.Context,
	name string,
	mqClient *mq.RabbitMQ,
	subscribe func() (<-chan amqp.Delivery, error),
	handle func(amqp.Delivery) error,
) {
	for {
		select {
		case <-ctx.Done():
			log.Infof("%s消费者已停止", name)
			return
		default:
		}

		// 等待 MQ 连接就绪
		if !mqClient.IsConnected() {
			time.Sleep(time.Second)
			continue
		}

		msgs, err := subscribe()
		if err != nil {
			log.Errorf("订阅%s队列失败: %v，等待重连...", name, err)
			time.Sleep(2 * time.Second)
			continue
		}

		log.Infof("%s队列消费者订阅成功", name)

		consumeMessages(ctx, name, msgs, handle)

		// 通道关闭后等待一段时间再重新订阅，避免频繁重试
		log.Infof("%s消费通道已关闭，等待重连...", name)
		time.Sleep(2 * time.Second)
	}
}

// consumeMessages 消费消息，直到 ctx 取消或通道关闭
func consumeMessages(ctx context.Context, name string, msgs <-chan amqp.Delivery, handle func(amqp.Delivery) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				// 通道关闭，返回让外层重新订阅
				return
			}

			if err := handle(msg); err != nil {
				log.Errorf("处理%s消息失败: %v", name, err)
				msg.Nack(false, true) // requeue
				continue
			}
			msg.Ack(false)
		}
	}
}
