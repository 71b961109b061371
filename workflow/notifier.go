package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/indicator_monitor/config"
	"github.com/mmdatafocus/indicator_monitor/models"
	"github.com/sirupsen/logrus"
)

type Directory interface {
	ListAdministrators(ctx context.Context) ([]models.User, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte) error
}

type Mailer interface {
	SendEmail(ctx context.Context, address string, subject string, body string) error
}

// Notification is the ephemeral breach message; it is never persisted.
type Notification struct {
	Subject         string    `json:"subject"`
	Message         string    `json:"message"`
	Category        string    `json:"category"`
	IndicatorCode   string    `json:"indicator_code"`
	NonConformityId int       `json:"non_conformity_id"`
	CreatedAt       time.Time `json:"created_at"`
}

type pushPayload struct {
	Notification
	RecipientId       int    `json:"recipient_id"`
	RecipientUsername string `json:"recipient_username"`
}

type DeliveryReport struct {
	Recipients int
	Pushed     int
	Emailed    int
	Failed     int
}

// Notifier fans a Notification out to every administrator.
// Delivery is best-effort: failures are logged and counted, never returned.
type Notifier struct {
	Directory Directory
	Publisher Publisher
	Mailer    Mailer
	Topic     string
	Logger    *logrus.Logger
}

func NewNotifier(directory Directory, publisher Publisher, mailer Mailer, topic string, logger *logrus.Logger) *Notifier {
	return &Notifier{
		Directory: directory,
		Publisher: publisher,
		Mailer:    mailer,
		Topic:     topic,
		Logger:    logger,
	}
}

func (n *Notifier) Notify(ctx context.Context, note Notification) DeliveryReport {
	var report DeliveryReport
	if n == nil || n.Directory == nil {
		return report
	}
	admins, err := n.Directory.ListAdministrators(ctx)
	if err != nil {
		notificationDeliveries.WithLabelValues("directory", "error").Inc()
		config.LogError(n.Logger, "Notifier", "Notify", "list administrators", note.IndicatorCode, err)
		return report
	}
	report.Recipients = len(admins)

	for _, admin := range admins {
		if n.push(ctx, admin, note) {
			report.Pushed++
		} else {
			report.Failed++
		}
		if !admin.WantsEmail() {
			continue
		}
		if n.email(ctx, admin, note) {
			report.Emailed++
		} else {
			report.Failed++
		}
	}

	n.Logger.WithFields(logrus.Fields{
		"field":          "Notifier",
		"indicator_code": note.IndicatorCode,
		"recipients":     report.Recipients,
		"pushed":         report.Pushed,
		"emailed":        report.Emailed,
		"failed":         report.Failed,
	}).Info("notification fan-out finished")
	return report
}

func (n *Notifier) push(ctx context.Context, admin models.User, note Notification) bool {
	if n.Publisher == nil {
		notificationDeliveries.WithLabelValues("push", "skipped").Inc()
		n.Logger.WithField("field", "Notifier").Warn("push channel not configured")
		return false
	}
	data, err := json.Marshal(pushPayload{
		Notification:      note,
		RecipientId:       admin.ID,
		RecipientUsername: admin.Username,
	})
	if err == nil {
		err = n.Publisher.Publish(ctx, n.Topic, data)
	}
	if err != nil {
		notificationDeliveries.WithLabelValues("push", "error").Inc()
		config.LogError(n.Logger, "Notifier", "push", "publish notification", map[string]any{
			"indicator_code": note.IndicatorCode,
			"recipient_id":   admin.ID,
		}, err)
		return false
	}
	notificationDeliveries.WithLabelValues("push", "ok").Inc()
	return true
}

func (n *Notifier) email(ctx context.Context, admin models.User, note Notification) bool {
	if n.Mailer == nil {
		notificationDeliveries.WithLabelValues("email", "skipped").Inc()
		n.Logger.WithField("field", "Notifier").Warn("email channel not configured")
		return false
	}
	if err := n.Mailer.SendEmail(ctx, *admin.Email, note.Subject, note.Message); err != nil {
		notificationDeliveries.WithLabelValues("email", "error").Inc()
		config.LogError(n.Logger, "Notifier", "email", "send notification email", map[string]any{
			"indicator_code": note.IndicatorCode,
			"recipient_id":   admin.ID,
		}, err)
		return false
	}
	notificationDeliveries.WithLabelValues("email", "ok").Inc()
	return true
}
