package service

import (
	"context"

	"github.com/JsonMa/erp/internal/apperrors"
	"github.com/JsonMa/erp/internal/model"
	"github.com/JsonMa/erp/internal/repository"
	"github.com/JsonMa/erp/pkg/jpush"

	log "github.com/sirupsen/logrus"
)

// Pusher 推送能力
type Pusher interface {
	Push(ctx context.Context, payload *jpush.PushPayload) error
}

type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	userRepo         *repository.UserRepository
	pusher           Pusher
	production       bool
}

func NewNotificationService(
	notificationRepo *repository.NotificationRepository,
	userRepo *repository.UserRepository,
	pusher Pusher,
	production bool,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		pusher:           pusher,
		production:       production,
	}
}

// Send2Individual 给单个用户发送消息：持久化消息记录后按手机号别名推送，
// 推送失败仅记录日志，不影响主流程，消息记录始终返回
func (s *NotificationService) Send2Individual(ctx context.Context, userID int64, ntype int16, message string) (*model.Notification, error) {
	title, ok := model.NotificationTitle(ntype)
	if !ok {
		return nil, apperrors.Contract("非法的消息类型")
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	notification := &model.Notification{
		UID:     userID,
		Type:    ntype,
		Content: message,
		Status:  model.NotificationStatusValid,
		Read:    false,
	}
	if err := s.notificationRepo.Create(notification); err != nil {
		return nil, err
	}

	// 未读数为该用户当前的角标快照，不加锁
	count, err := s.notificationRepo.CountUnread(userID)
	if err != nil {
		return nil, err
	}

	extras := map[string]interface{}{"unread": count}
	payload := &jpush.PushPayload{
		Audience: jpush.Audience{
			Alias: []string{user.Phone},
		},
		Notification: jpush.Notification{
			Android: &jpush.AndroidNotification{
				Alert:  message,
				Title:  title,
				Extras: extras,
			},
			IOS: &jpush.IOSNotification{
				Alert:  message,
				Extras: extras,
			},
		},
		Options: jpush.Options{
			TimeToLive:     60,
			ApnsProduction: s.production,
		},
	}

	if err := s.pusher.Push(ctx, payload); err != nil {
		// 推送是尽力而为，失败后仅用日志记录
		log.Errorf("推送消息失败 (用户: %d): %v", userID, err)
	}

	return notification, nil
}
