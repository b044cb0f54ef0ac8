package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/JsonMa/erp/internal/apperrors"
	"github.com/JsonMa/erp/internal/model"
	"github.com/JsonMa/erp/internal/mq"
	"github.com/JsonMa/erp/internal/repository"
	"github.com/JsonMa/erp/pkg/wechat"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TradePublisher 交易相关的 MQ 发布能力
type TradePublisher interface {
	PublishDelay(tradeID string) error
	PublishNotify(msg *mq.TradeNotifyMessage) error
}

type TradeService struct {
	orderRepo     *repository.OrderRepository
	tradeRepo     *repository.TradeRepository
	commodityRepo *repository.CommodityRepository
	wechatClient  *wechat.Client
	publisher     TradePublisher
}

func NewTradeService(
	orderRepo *repository.OrderRepository,
	tradeRepo *repository.TradeRepository,
	commodityRepo *repository.CommodityRepository,
	wechatClient *wechat.Client,
	publisher TradePublisher,
) *TradeService {
	return &TradeService{
		orderRepo:     orderRepo,
		tradeRepo:     tradeRepo,
		commodityRepo: commodityRepo,
		wechatClient:  wechatClient,
		publisher:     publisher,
	}
}

// CreateTrade 发起微信支付交易：校验订单状态和归属后创建交易记录，
// 调用统一下单接口，并返回客户端调起支付所需的参数
func (s *TradeService) CreateTrade(ctx context.Context, userID int64, orderID uuid.UUID, clientIP string) (*model.Trade, map[string]string, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.NotFound(apperrors.CodeTradeNotFound, "订单不存在")
		}
		return nil, nil, err
	}
	if order.UserID != userID {
		return nil, nil, apperrors.Forbidden("没有权限操作该订单")
	}
	if order.Status != model.OrderStatusCreated {
		return nil, nil, apperrors.InvalidState(apperrors.CodeTradeInvalidState, "订单状态有误，不能发起支付")
	}

	commodity, err := s.commodityRepo.FindByID(order.CommodityID)
	if err != nil {
		return nil, nil, fmt.Errorf("查询订单商品失败: %w", err)
	}

	trade := &model.Trade{
		OrderID: order.ID,
		Type:    model.TradeTypeWechat,
		Status:  model.TradeStatusPending,
	}
	if err := s.tradeRepo.Create(trade); err != nil {
		return nil, nil, err
	}

	// 金额换算为分，向下取整
	totalFee := order.RealPrice.Mul(decimal.NewFromInt(100)).IntPart()

	resp, err := s.wechatClient.UnifiedOrder(ctx, wechat.UnifiedOrderRequest{
		Body:           commodity.Name,
		OutTradeNo:     wechat.TradeNoFromUUID(trade.ID),
		TotalFee:       totalFee,
		SpbillCreateIP: clientIP,
	})
	if err != nil {
		return nil, nil, apperrors.Upstream(apperrors.CodeTradeUpstream, fmt.Sprintf("微信支付请求失败: %v", err))
	}
	if resp["return_code"] != wechat.ReturnCodeSuccess {
		return nil, nil, apperrors.Upstream(apperrors.CodeTradeUpstream, resp["return_msg"])
	}

	// 客户端调起支付的参数，需要重新签名
	payload := map[string]string{
		"appid":     resp["appid"],
		"partnerid": resp["mch_id"],
		"prepayid":  resp["prepay_id"],
		"package":   wechat.PackageValue, // 固定值
		"noncestr":  wechat.NonceStr(),
		"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
	}
	payload["sign"] = s.wechatClient.Sign(payload)

	// 发送延时消息，超时未支付的交易将被关闭
	if err := s.publisher.PublishDelay(trade.ID.String()); err != nil {
		log.Errorf("发送交易延时消息失败 (交易: %s): %v", trade.ID, err)
	}

	return trade, payload, nil
}

// FinishTrade 应用支付回调的目标状态：
//   - closed/finished 仅关闭交易；
//   - success 在同一事务内将订单置为已支付并关联交易、交易置为成功；
//   - 其余状态视为契约违例，不做任何写入
func (s *TradeService) FinishTrade(ctx context.Context, tradeID uuid.UUID, status int16) error {
	trade, err := s.tradeRepo.FindByID(tradeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(apperrors.CodeTradeNotFound, "订单不存在")
		}
		return err
	}

	switch status {
	case model.TradeStatusClosed, model.TradeStatusFinished:
		if err := s.tradeRepo.UpdateStatus(s.tradeRepo.GetDB(), trade.ID, model.TradeStatusClosed); err != nil {
			return err
		}

	case model.TradeStatusSuccess:
		// 订单置为已支付和交易置为成功必须同时生效或同时回滚
		tx := s.tradeRepo.GetDB().Begin()
		if tx.Error != nil {
			return fmt.Errorf("开启事务失败: %w", tx.Error)
		}
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			}
		}()

		if err := s.orderRepo.UpdatePaid(tx, trade.OrderID, trade.ID); err != nil {
			tx.Rollback()
			return err
		}
		if err := s.tradeRepo.UpdateStatus(tx, trade.ID, model.TradeStatusSuccess); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit().Error; err != nil {
			return fmt.Errorf("提交事务失败: %w", err)
		}

		s.publishNotify(trade, model.TradeStatusSuccess)

	default:
		log.Errorf("非法的交易目标状态 (交易: %s, status: %d)", trade.ID, status)
		return apperrors.Contract("非法的交易目标状态")
	}

	return nil
}

// HandleExpiredTrade 处理超时交易（由 MQ 消费者调用），
// 仅关闭仍处于待支付状态的交易，重复投递是安全的
func (s *TradeService) HandleExpiredTrade(tradeID string) error {
	id, err := uuid.Parse(tradeID)
	if err != nil {
		return fmt.Errorf("非法的交易 ID %q: %w", tradeID, err)
	}

	trade, err := s.tradeRepo.FindByID(id)
	if err != nil {
		return err
	}

	if trade.Status != model.TradeStatusPending {
		return nil
	}

	if err := s.tradeRepo.UpdateStatus(s.tradeRepo.GetDB(), trade.ID, model.TradeStatusClosed); err != nil {
		return err
	}

	s.publishNotify(trade, model.TradeStatusClosed)

	log.Infof("交易超时已关闭: %s", trade.ID)
	return nil
}

// publishNotify 发送交易状态通知，失败仅记录日志
func (s *TradeService) publishNotify(trade *model.Trade, status int16) {
	msg := &mq.TradeNotifyMessage{
		TradeID:   trade.ID.String(),
		OrderID:   trade.OrderID.String(),
		Status:    status,
		Timestamp: time.Now().Unix(),
	}
	if err := s.publisher.PublishNotify(msg); err != nil {
		log.Errorf("发送交易状态通知失败 (交易: %s): %v", trade.ID, err)
	}
}
