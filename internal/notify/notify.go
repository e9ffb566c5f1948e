package notify

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

type EventType string

const (
	EventOrderPlaced        EventType = "order.placed"
	EventStatusChanged      EventType = "order.status"
	EventOfferOpened        EventType = "order.offer.opened"
	EventAssignmentAccepted EventType = "order.assignment.accepted"
	EventOrderCancelled     EventType = "order.cancelled"
	EventOtpRegenerated     EventType = "order.otp.regenerated"
)

// Event is what the order core tells the outside world after a committed change.
type Event struct {
	Type        EventType `json:"type"`
	OrderID     string    `json:"orderId"`
	ShopOrderID string    `json:"shopOrderId,omitempty"`
	Status      string    `json:"status,omitempty"`
	ActorID     string    `json:"actorId,omitempty"`
	CourierIDs  []string  `json:"courierIds,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// RoutingKey is the topic key, e.g. "order.status.out_of_delivery".
func (e Event) RoutingKey() string {
	if e.Type == EventStatusChanged && e.Status != "" {
		return string(e.Type) + "." + strings.ReplaceAll(e.Status, " ", "_")
	}
	return string(e.Type)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// OtpNotifier delivers a delivery OTP to the customer out of band.
type OtpNotifier interface {
	SendDeliveryOtp(ctx context.Context, recipient, orderID, otp string, expiresAt time.Time) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// LogNotifier records that an OTP went out without revealing it.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendDeliveryOtp(_ context.Context, recipient, orderID, _ string, expiresAt time.Time) error {
	n.logger.Info("delivery otp issued",
		zap.String("orderId", orderID),
		zap.Bool("hasRecipient", recipient != ""),
		zap.Time("expiresAt", expiresAt),
	)
	return nil
}

// PublishBestEffort never fails the caller; the state change it describes
// is already committed.
func PublishBestEffort(ctx context.Context, p Publisher, logger *zap.Logger, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := p.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish order event",
			zap.String("type", string(event.Type)),
			zap.String("orderId", event.OrderID),
			zap.String("shopOrderId", event.ShopOrderID),
			zap.Error(err),
		)
	}
}

// NotifyOtpBestEffort hands the code to the channel and only logs failures.
func NotifyOtpBestEffort(ctx context.Context, n OtpNotifier, logger *zap.Logger, recipient, orderID, otp string, expiresAt time.Time) {
	if recipient == "" {
		return
	}
	if err := n.SendDeliveryOtp(ctx, recipient, orderID, otp, expiresAt); err != nil {
		logger.Warn("failed to send delivery otp", zap.String("orderId", orderID), zap.Error(err))
	}
}
