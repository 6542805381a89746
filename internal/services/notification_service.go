// internal/services/notification_service.go
package services

import (
	"fmt"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tonytran1984vn/trustchecker/internal/config"
	"github.com/tonytran1984vn/trustchecker/internal/events"
	"github.com/tonytran1984vn/trustchecker/internal/models"
)

// NotificationService consumes the event bus and turns pipeline events into
// persisted operator notifications, plus email for critical fraud alerts.
type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

func NewNotificationService(db *gorm.DB, cfg *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: cfg,
	}
}

// Listen subscribes to the bus and processes events until the subscription
// channel is closed. Run it on its own goroutine.
func (s *NotificationService) Listen(bus *events.Bus) {
	ch, _ := bus.Subscribe(64)
	for evt := range ch {
		s.handle(evt)
	}
}

func (s *NotificationService) handle(evt events.Event) {
	switch evt.Type {
	case events.TypeFraudFlagged:
		s.handleFraudFlagged(evt)
	case events.TypeScanRejected:
		s.handleScanRejected(evt)
	}
}

func (s *NotificationService) handleFraudFlagged(evt events.Event) {
	severity, _ := evt.Payload["severity"].(string)
	description, _ := evt.Payload["description"].(string)
	alertType, _ := evt.Payload["type"].(string)

	notification := &models.Notification{
		Type:                "fraud_alert",
		Title:               fmt.Sprintf("Fraud alert: %s", alertType),
		Message:             description,
		Priority:            severity,
		RelatedResourceType: "fraud_alert",
	}

	if alertID, ok := evt.Payload["alert_id"].(string); ok {
		if parsed, err := uuid.Parse(alertID); err == nil {
			notification.RelatedResourceID = &parsed
		}
	}

	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).Error("Failed to create fraud notification")
		return
	}

	if severity == string(models.SeverityCritical) {
		subject := "Critical fraud alert: " + alertType
		if err := s.sendEmail(s.config.Email.OpsEmail, subject, description); err != nil {
			logrus.WithError(err).Warn("Failed to send fraud alert email")
		}
	}
}

func (s *NotificationService) handleScanRejected(evt events.Event) {
	notification := &models.Notification{
		Type:                "counterfeit_scan",
		Title:               "Unknown code scanned",
		Message:             "A scan attempt used a code not present in the registry; recorded as counterfeit.",
		Priority:            string(models.SeverityHigh),
		RelatedResourceType: "scan_event",
	}

	if scanID, ok := evt.Payload["scan_id"].(string); ok {
		if parsed, err := uuid.Parse(scanID); err == nil {
			notification.RelatedResourceID = &parsed
		}
	}

	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).Error("Failed to create counterfeit notification")
	}
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" || to == "" {
		// Email not configured, just log
		logrus.WithField("subject", subject).Info("Email skipped: SMTP not configured")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s", to, subject, body))
	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)

	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}
