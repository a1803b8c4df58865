package authorization

import (
	"context"
	"fmt"

	"github.com/hcbs/backend/internal/domain/authorization"
	"github.com/hcbs/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// NearLimitHandler handles AuthorizationNearLimit events and triggers alerts
// so care coordinators can request reauthorization before units run out
type NearLimitHandler struct {
	logger   *zap.Logger
	notifier UtilizationAlertNotifier
}

// UtilizationAlertNotifier is the interface for sending utilization alerts.
// Implementations can support different channels (in-app, email, SMS, etc.)
type UtilizationAlertNotifier interface {
	// SendAlert sends a utilization alert notification
	SendAlert(ctx context.Context, alert UtilizationAlert) error
}

// UtilizationAlert represents a near-limit utilization alert
type UtilizationAlert struct {
	AuthorizationID string   `json:"authorization_id"`
	ClientID        string   `json:"client_id"`
	ProgramID       string   `json:"program_id"`
	UsedUnits       string   `json:"used_units"`
	AuthorizedUnits string   `json:"authorized_units"`
	Percentage      string   `json:"percentage"`
	Channels        []string `json:"channels"` // "in_app", "email", "sms"
}

// NewNearLimitHandler creates a new handler for near-limit events
func NewNearLimitHandler(logger *zap.Logger) *NearLimitHandler {
	return &NearLimitHandler{
		logger: logger,
	}
}

// WithNotifier sets the notifier for sending alerts
func (h *NearLimitHandler) WithNotifier(notifier UtilizationAlertNotifier) *NearLimitHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *NearLimitHandler) EventTypes() []string {
	return []string{authorization.EventTypeAuthorizationNearLimit}
}

// Handle processes an AuthorizationNearLimitEvent
func (h *NearLimitHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	nearLimitEvent, ok := event.(*authorization.AuthorizationNearLimitEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", authorization.EventTypeAuthorizationNearLimit),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			authorization.EventTypeAuthorizationNearLimit, event.EventType())
	}

	h.logger.Warn("authorization utilization near limit",
		zap.String("authorization_id", nearLimitEvent.AuthorizationID.String()),
		zap.String("client_id", nearLimitEvent.ClientID.String()),
		zap.String("program_id", nearLimitEvent.ProgramID.String()),
		zap.String("used_units", nearLimitEvent.UsedUnits.String()),
		zap.String("authorized_units", nearLimitEvent.AuthorizedUnits.String()),
		zap.String("percentage", nearLimitEvent.Percentage.String()),
	)

	if h.notifier == nil {
		return nil
	}

	alert := UtilizationAlert{
		AuthorizationID: nearLimitEvent.AuthorizationID.String(),
		ClientID:        nearLimitEvent.ClientID.String(),
		ProgramID:       nearLimitEvent.ProgramID.String(),
		UsedUnits:       nearLimitEvent.UsedUnits.String(),
		AuthorizedUnits: nearLimitEvent.AuthorizedUnits.String(),
		Percentage:      nearLimitEvent.Percentage.String(),
		Channels:        []string{"in_app"}, // Default to in-app notifications
	}

	if err := h.notifier.SendAlert(ctx, alert); err != nil {
		h.logger.Error("failed to send utilization alert notification",
			zap.String("authorization_id", alert.AuthorizationID),
			zap.Error(err),
		)
		// Don't return error - notification failure shouldn't fail the event handling
		return nil
	}

	h.logger.Info("utilization alert notification sent",
		zap.String("authorization_id", alert.AuthorizationID),
		zap.Strings("channels", alert.Channels),
	)
	return nil
}

// Ensure NearLimitHandler implements shared.EventHandler
var _ shared.EventHandler = (*NearLimitHandler)(nil)

// LoggingUtilizationAlertNotifier is a simple notifier that logs alerts.
// This is useful for development and testing.
type LoggingUtilizationAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingUtilizationAlertNotifier creates a new logging notifier
func NewLoggingUtilizationAlertNotifier(logger *zap.Logger) *LoggingUtilizationAlertNotifier {
	return &LoggingUtilizationAlertNotifier{
		logger: logger,
	}
}

// SendAlert logs the utilization alert
func (n *LoggingUtilizationAlertNotifier) SendAlert(ctx context.Context, alert UtilizationAlert) error {
	n.logger.Warn("UTILIZATION ALERT",
		zap.String("authorization_id", alert.AuthorizationID),
		zap.String("client_id", alert.ClientID),
		zap.String("used_units", alert.UsedUnits),
		zap.String("authorized_units", alert.AuthorizedUnits),
		zap.String("percentage", alert.Percentage),
		zap.Strings("channels", alert.Channels),
	)
	return nil
}

// Ensure LoggingUtilizationAlertNotifier implements UtilizationAlertNotifier
var _ UtilizationAlertNotifier = (*LoggingUtilizationAlertNotifier)(nil)
