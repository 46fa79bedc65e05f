package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/missingpersons/models"
)

// NotificationOutcome is the result of the single alert attempt for a sighting
type NotificationOutcome struct {
	Status    models.NotificationStatus `json:"status"`
	Reason    string                    `json:"reason,omitempty"`
	MessageID string                    `json:"message_id,omitempty"`
}

func (o NotificationOutcome) Sent() bool {
	return o.Status == models.NotificationSent
}

// AlertNotifier sends a sighting alert to the phone registered with the
// person. A nil sender means SMS is not configured.
type AlertNotifier struct {
	sender  SMSSender
	timeout time.Duration
	log     *zap.Logger
}

func NewAlertNotifier(sender SMSSender, timeout time.Duration, log *zap.Logger) *AlertNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AlertNotifier{sender: sender, timeout: timeout, log: log}
}

// Enabled reports whether an SMS transport is configured
func (n *AlertNotifier) Enabled() bool {
	return n.sender != nil
}

// Notify makes at most one delivery attempt and never returns an error; every
// failure is reported through the outcome.
func (n *AlertNotifier) Notify(ctx context.Context, person *models.Person, score int, latitude, longitude *float64) NotificationOutcome {
	if n.sender == nil {
		return NotificationOutcome{Status: models.NotificationSkippedNotConfigured, Reason: "sms provider not configured"}
	}

	to := strings.TrimSpace(person.Phone)
	if to == "" {
		return NotificationOutcome{Status: models.NotificationSkippedInvalidRecipient, Reason: "person has no phone number"}
	}
	if to == strings.TrimSpace(n.sender.From()) {
		return NotificationOutcome{Status: models.NotificationSkippedInvalidRecipient, Reason: "recipient is the sender number"}
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	body := AlertMessage(person.Name, score, latitude, longitude)
	sid, err := n.send(ctx, to, body)
	if err != nil {
		n.log.Warn("alert delivery failed", zap.Uint("person_id", person.ID), zap.Error(err))
		return NotificationOutcome{Status: models.NotificationFailed, Reason: err.Error()}
	}

	n.log.Info("alert sent", zap.Uint("person_id", person.ID), zap.String("sid", sid))
	return NotificationOutcome{Status: models.NotificationSent, MessageID: sid}
}

// send isolates the transport so a panicking sender is reported as a failure
func (n *AlertNotifier) send(ctx context.Context, to, body string) (sid string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sms sender panicked: %v", r)
		}
	}()
	return n.sender.Send(ctx, to, body)
}

// AlertMessage renders the SMS body
func AlertMessage(name string, score int, latitude, longitude *float64) string {
	location := "Location unavailable"
	if latitude != nil && longitude != nil {
		location = fmt.Sprintf("https://maps.google.com/?q=%v,%v", *latitude, *longitude)
	}
	return fmt.Sprintf("ALERT: Missing person located!\nName: %s\nMatch Confidence: %d%%\nLast Seen Location: %s",
		name, score, location)
}
