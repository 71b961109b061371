package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mmdatafocus/indicator_monitor/models"
	"github.com/mmdatafocus/indicator_monitor/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func admin(id int, email string, wantsEmail bool) models.User {
	u := models.User{ID: id, Username: email, Role: models.UserRoleAdmin, IsActive: utils.NewTrue(), EmailNotifications: &wantsEmail}
	if email != "" {
		u.Email = strPtr(email)
	}
	return u
}

func TestNotifier_EmailFollowsPreference(t *testing.T) {
	pub := &fakePublisher{}
	mailer := &fakeMailer{}
	dir := fakeDirectory{users: []models.User{
		admin(1, "a@example.com", true),
		admin(2, "b@example.com", false),
		admin(3, "", true),
	}}
	n := NewNotifier(dir, pub, mailer, "alerts", newTestLogger())

	report := n.Notify(context.Background(), Notification{
		Subject:       "Indicator IND-AFC-01 breached its target",
		Message:       "current value 15% > target 10%",
		Category:      string(models.IndicatorFamilyFinancialFeeRate),
		IndicatorCode: "IND-AFC-01",
	})

	assert.Equal(t, DeliveryReport{Recipients: 3, Pushed: 3, Emailed: 1}, report)
	require.Equal(t, 3, pub.count())
	require.Equal(t, 1, mailer.count())
	assert.Equal(t, "a@example.com", mailer.sent[0].Address)
	assert.Equal(t, "Indicator IND-AFC-01 breached its target", mailer.sent[0].Subject)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(pub.calls[1].Data, &payload))
	assert.Equal(t, "alerts", pub.calls[1].Topic)
	assert.Equal(t, "IND-AFC-01", payload["indicator_code"])
	assert.Equal(t, "FINANCIAL_FEE_RATE", payload["category"])
	assert.EqualValues(t, 2, payload["recipient_id"])
}

func TestNotifier_FailuresAreSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("pubsub down")}
	mailer := &fakeMailer{err: errors.New("smtp refused")}
	dir := fakeDirectory{users: []models.User{admin(1, "a@example.com", true), admin(2, "b@example.com", true)}}
	n := NewNotifier(dir, pub, mailer, "alerts", newTestLogger())

	report := n.Notify(context.Background(), Notification{IndicatorCode: "IND-AFC-01"})
	assert.Equal(t, DeliveryReport{Recipients: 2, Failed: 4}, report)
	assert.Equal(t, 2, pub.count(), "a failed push does not stop the email attempt or the next recipient")
	assert.Equal(t, 2, mailer.count())
}

func TestNotifier_DirectoryErrorAndMissingChannels(t *testing.T) {
	n := NewNotifier(fakeDirectory{err: errors.New("identity service down")}, &fakePublisher{}, nil, "alerts", newTestLogger())
	assert.Equal(t, DeliveryReport{}, n.Notify(context.Background(), Notification{IndicatorCode: "X"}))

	n = NewNotifier(fakeDirectory{users: []models.User{admin(1, "a@example.com", true)}}, nil, nil, "alerts", newTestLogger())
	assert.Equal(t, DeliveryReport{Recipients: 1, Failed: 2}, n.Notify(context.Background(), Notification{IndicatorCode: "X"}))

	var none *Notifier
	assert.Equal(t, DeliveryReport{}, none.Notify(context.Background(), Notification{}))
}
