package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

const (
	// Exchange 名称
	DelayExchange  = "trade.delay.exchange"
	CloseExchange  = "trade.close.exchange"
	NotifyExchange = "trade.notify.exchange"

	// Queue 名称
	DelayQueue  = "trade.delay.queue"
	CloseQueue  = "trade.close.queue"
	NotifyQueue = "trade.notify.queue"

	// Routing Key
	DelayRoutingKey  = "trade.delay"
	CloseRoutingKey  = "trade.close"
	NotifyRoutingKey = "trade.notify"

	// 重连配置
	reconnectDelay = 3 * time.Second // 重连间隔
	maxReconnect   = 0               // 最大重连次数，0 表示无限重连
)

// TradeNotifyMessage 交易状态变更通知消息
type TradeNotifyMessage struct {
	TradeID   string `json:"trade_id"`
	OrderID   string `json:"order_id"`
	Status    int16  `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// RabbitMQ 封装（支持自动重连）
type RabbitMQ struct {
	url           string
	expireMinutes int

	conn    *amqp.Connection
	channel *amqp.Channel

	mu          sync.RWMutex
	isConnected bool
	done        chan struct{}
}

// NewRabbitMQ 创建 RabbitMQ 连接并声明队列
func NewRabbitMQ(url string, expireMinutes int) (*RabbitMQ, error) {
	r := &RabbitMQ{
		url:           url,
		expireMinutes: expireMinutes,
		done:          make(chan struct{}),
	}

	if err := r.connect(); err != nil {
		return nil, err
	}

	// 启动连接监控 goroutine
	go r.monitorConnection()

	return r, nil
}

// connect 建立连接
func (r *RabbitMQ) connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("打开 Channel 失败: %w", err)
	}

	r.conn = conn
	r.channel = ch
	r.isConnected = true

	if err := r.declareTopology(); err != nil {
		ch.Close()
		conn.Close()
		r.isConnected = false
		return err
	}

	log.Info("RabbitMQ 连接成功")
	return nil
}

// monitorConnection 监控连接状态，断开时自动重连
func (r *RabbitMQ) monitorConnection() {
	for {
		select {
		case <-r.done:
			return
		default:
		}

		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()

		if conn == nil {
			time.Sleep(reconnectDelay)
			continue
		}

		// 监听连接关闭事件
		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-r.done:
			return
		case err := <-notifyClose:
			if err != nil {
				log.Errorf("RabbitMQ 连接断开: %v", err)
			}

			r.mu.Lock()
			r.isConnected = false
			r.mu.Unlock()

			// 开始重连
			r.reconnect()
		}
	}
}

// reconnect 重连逻辑
func (r *RabbitMQ) reconnect() {
	attempt := 0
	for {
		select {
		case <-r.done:
			return
		default:
		}

		attempt++
		log.Infof("RabbitMQ 尝试重连 (第 %d 次)...", attempt)

		if err := r.connect(); err != nil {
			log.Errorf("RabbitMQ 重连失败: %v", err)
			time.Sleep(reconnectDelay)

			if maxReconnect > 0 && attempt >= maxReconnect {
				log.Errorf("RabbitMQ 重连次数达到上限 (%d)，停止重连", maxReconnect)
				return
			}
			continue
		}

		log.Info("RabbitMQ 重连成功")
		return
	}
}

// declareTopology 声明所有 exchange 和 queue
func (r *RabbitMQ) declareTopology() error {
	// 1. 声明交易关闭交换机（direct）
	if err := r.channel.ExchangeDeclare(CloseExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明 CloseExchange 失败: %w", err)
	}

	// 2. 声明通知交换机（direct）
	if err := r.channel.ExchangeDeclare(NotifyExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明 NotifyExchange 失败: %w", err)
	}

	// 3. 声明延时交换机（direct）
	if err := r.channel.ExchangeDeclare(DelayExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明 DelayExchange 失败: %w", err)
	}

	// 4. 声明延时队列（带 TTL 和 DLX），消息超时后进入关闭队列
	ttlMs := int32(r.expireMinutes * 60 * 1000)
	_, err := r.channel.QueueDeclare(DelayQueue, true, false, false, false, amqp.Table{
		"x-message-ttl":             ttlMs,
		"x-dead-letter-exchange":    CloseExchange,
		"x-dead-letter-routing-key": CloseRoutingKey,
	})
	if err != nil {
		return fmt.Errorf("声明 DelayQueue 失败: %w", err)
	}

	// 绑定延时队列到延时交换机
	if err := r.channel.QueueBind(DelayQueue, DelayRoutingKey, DelayExchange, false, nil); err != nil {
		return fmt.Errorf("绑定 DelayQueue 失败: %w", err)
	}

	// 5. 声明关闭消费队列
	_, err = r.channel.QueueDeclare(CloseQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("声明 CloseQueue 失败: %w", err)
	}

	// 绑定关闭队列到关闭交换机
	if err := r.channel.QueueBind(CloseQueue, CloseRoutingKey, CloseExchange, false, nil); err != nil {
		return fmt.Errorf("绑定 CloseQueue 失败: %w", err)
	}

	// 6. 声明通知队列
	_, err = r.channel.QueueDeclare(NotifyQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("声明 NotifyQueue 失败: %w", err)
	}

	// 绑定通知队列到通知交换机
	if err := r.channel.QueueBind(NotifyQueue, NotifyRoutingKey, NotifyExchange, false, nil); err != nil {
		return fmt.Errorf("绑定 NotifyQueue 失败: %w", err)
	}

	return nil
}

// IsConnected 检查是否已连接
func (r *RabbitMQ) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isConnected
}

// PublishDelay 发送延时消息（交易超时关闭检查）
func (r *RabbitMQ) PublishDelay(tradeID string) error {
	r.mu.RLock()
	if !r.isConnected {
		r.mu.RUnlock()
		return fmt.Errorf("RabbitMQ 未连接")
	}
	ch := r.channel
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body, err := json.Marshal(map[string]string{"trade_id": tradeID})
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, DelayExchange, DelayRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
}

// PublishNotify 发送交易状态通知消息（支付成功/关闭）
func (r *RabbitMQ) PublishNotify(msg *TradeNotifyMessage) error {
	r.mu.RLock()
	if !r.isConnected {
		r.mu.RUnlock()
		return fmt.Errorf("RabbitMQ 未连接")
	}
	ch := r.channel
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, NotifyExchange, NotifyRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
}

// ConsumeClose 消费交易关闭队列
func (r *RabbitMQ) ConsumeClose() (<-chan amqp.Delivery, error) {
	return r.consume(CloseQueue, "close-consumer")
}

// ConsumeNotify 消费交易通知队列
func (r *RabbitMQ) ConsumeNotify() (<-chan amqp.Delivery, error) {
	return r.consume(NotifyQueue, "notify-consumer")
}

func (r *RabbitMQ) consume(queue, tagPrefix string) (<-chan amqp.Delivery, error) {
	r.mu.RLock()
	if !r.isConnected {
		r.mu.RUnlock()
		return nil, fmt.Errorf("RabbitMQ 未连接")
	}
	ch := r.channel
	r.mu.RUnlock()

	// 使用唯一的 consumer tag，避免重连时冲突
	consumerTag := fmt.Sprintf("%s-%d", tagPrefix, time.Now().UnixNano())
	return ch.Consume(queue, consumerTag, false, false, false, false, nil)
}

// Close 关闭连接
func (r *RabbitMQ) Close() {
	close(r.done)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			log.Errorf("关闭 RabbitMQ channel 失败: %v", err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			log.Errorf("关闭 RabbitMQ 连接失败: %v", err)
		}
	}
	r.isConnected = false
}
