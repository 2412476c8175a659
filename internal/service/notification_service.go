package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/events"
)

const notificationChannel = "triage:notifications"

// NotificationService fans escalations and degradations out to the
// on-call surface. Delivery is best effort; triage never blocks on it.
type NotificationService struct {
	dispatcher events.Dispatcher
	redis      *redis.Client
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, redisClient *redis.Client, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		redis:      redisClient,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleTicketEscalated)
	n.dispatcher.Subscribe(events.EventDiagnosisDegraded, n.handleDiagnosisDegraded)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketResolved)
	n.dispatcher.Subscribe(events.EventBreakerStateChanged, n.handleBreakerStateChanged)
}

func (n *NotificationService) handleTicketEscalated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketEscalated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.publishNotification(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleDiagnosisDegraded(ctx context.Context, event events.Event) error {
	n.logger.Warn("DiagnosisDegraded", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.publishNotification(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketResolved(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketResolved", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.publishNotification(ctx, event)
	return nil
}

func (n *NotificationService) handleBreakerStateChanged(ctx context.Context, event events.Event) error {
	n.logger.Warn("BreakerStateChanged", zap.Any("payload", event.Payload))
	n.publishNotification(ctx, event)
	return nil
}

// publishNotification mirrors the event onto a Redis channel consumed by
// the on-call dashboard.
func (n *NotificationService) publishNotification(ctx context.Context, event events.Event) {
	if n.redis == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("marshal notification", zap.Error(err))
		return
	}
	if err := n.redis.Publish(ctx, notificationChannel, body).Err(); err != nil {
		n.logger.Warn("publish notification", zap.Error(err), zap.String("event_type", string(event.Type)))
	}
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
