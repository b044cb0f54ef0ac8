package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/JsonMa/erp/internal/apperrors"
	"github.com/JsonMa/erp/internal/model"
	"github.com/JsonMa/erp/internal/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type LogisticsService struct {
	orderRepo           *repository.OrderRepository
	logisticsRepo       *repository.LogisticsRepository
	commodityRepo       *repository.CommodityRepository
	notificationService *NotificationService
}

func NewLogisticsService(
	orderRepo *repository.OrderRepository,
	logisticsRepo *repository.LogisticsRepository,
	commodityRepo *repository.CommodityRepository,
	notificationService *NotificationService,
) *LogisticsService {
	return &LogisticsService{
		orderRepo:           orderRepo,
		logisticsRepo:       logisticsRepo,
		commodityRepo:       commodityRepo,
		notificationService: notificationService,
	}
}

// Ship 订单发货：校验订单状态和归属后创建物流记录并将订单置为已发货，
// 随后给订单用户推送发货消息
func (s *LogisticsService) Ship(ctx context.Context, userID int64, orderID uuid.UUID, company, orderNo string) (*model.Logistics, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeLogisticsOrderNotFound, "创建失败：订单不存在")
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.Forbidden("没有权限操作该订单")
	}
	if order.Status != model.OrderStatusPayed {
		return nil, apperrors.InvalidState(apperrors.CodeLogisticsInvalidState, "订单状态有误，不能执行发货请求")
	}

	logistics := &model.Logistics{
		OrderID: order.ID,
		Company: company,
		OrderNo: orderNo,
	}

	// 物流记录和订单状态变更在同一事务内生效
	tx := s.orderRepo.GetDB().Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := s.logisticsRepo.Create(tx, logistics); err != nil {
		tx.Rollback()
		return nil, err
	}
	order.Status = model.OrderStatusShipment
	if err := s.orderRepo.Save(tx, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("提交事务失败: %w", err)
	}

	commodity, err := s.commodityRepo.FindByID(order.CommodityID)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("您购买的商品\"%s\"已发货", commodity.Name)
	if _, err := s.notificationService.Send2Individual(ctx, order.UserID, model.NotificationTypeOrder, message); err != nil {
		return nil, err
	}

	log.Infof("订单已发货: %s, 物流公司: %s, 运单号: %s", order.ID, company, orderNo)
	return logistics, nil
}
