package services

import (
	"GuardianAI/models"
	"GuardianAI/repositories/mocks"
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPushSender struct {
	mock.Mock
}

func (m *mockPushSender) Send(ctx context.Context, message *messaging.Message) (string, error) {
	args := m.Called(message)
	return args.String(0), args.Error(1)
}

func TestSendNotification(t *testing.T) {
	sender := new(mockPushSender)
	service := NewNotificationService(sender, nil)

	sender.On("Send", mock.MatchedBy(func(m *messaging.Message) bool {
		return m.Token == "device-1" && m.Notification.Title == "Hello" && m.Data["k"] == "v"
	})).Return("msg-1", nil)

	err := service.SendNotification(context.Background(), "device-1", "Hello", "Body", map[string]string{"k": "v"})
	require.NoError(t, err)
	sender.AssertExpectations(t)

	assert.Error(t, service.SendNotification(context.Background(), "", "Hello", "Body", nil))
	assert.Error(t, NewNotificationService(nil, nil).SendNotification(context.Background(), "device-1", "t", "b", nil))
}

func TestNotifyBlockedAccess(t *testing.T) {
	sender := new(mockPushSender)
	guardianRepo := new(mocks.GuardianRepository)
	service := NewNotificationService(sender, guardianRepo)
	child := models.Child{ID: 4, ChildHash: "child-1", FirstName: "Anna"}

	guardianRepo.On("FindByChildID", uint(4)).Return([]models.Guardian{
		{ID: 1, DeviceToken: "token-ru", Lang: "ru"},
		{ID: 2},
		{ID: 3, DeviceToken: "token-en"},
	}, nil)
	sender.On("Send", mock.MatchedBy(func(m *messaging.Message) bool {
		return m.Token == "token-ru" && m.Notification.Title == "Заблокированный сайт"
	})).Return("m1", nil).Once()
	sender.On("Send", mock.MatchedBy(func(m *messaging.Message) bool {
		return m.Token == "token-en" && m.Notification.Title == "Blocked site" &&
			m.Notification.Body == "Anna: a.com, b.com" &&
			m.Data["type"] == "blocked_site" && m.Data["child_hash"] == "child-1"
	})).Return("", errors.New("unregistered")).Once()

	service.NotifyBlockedAccess(context.Background(), child, []string{"a.com", "b.com"})

	sender.AssertExpectations(t)
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestBlockedAccessBody(t *testing.T) {
	child := models.Child{FirstName: "Anna", LastName: "K"}

	assert.Equal(t, "Anna K: a.com", BlockedAccessBody(child, []string{"a.com", "a.com"}))
	assert.Equal(t, "Anna K: a.com, b.com, c.com and 2 more",
		BlockedAccessBody(child, []string{"a.com", "b.com", "c.com", "d.com", "b.com", "e.com"}))
	assert.Equal(t, "hash-9: x.org", BlockedAccessBody(models.Child{ChildHash: "hash-9"}, []string{"x.org"}))
}

func TestAlertTitle(t *testing.T) {
	assert.Equal(t, "Blocked site", AlertTitle(""))
	assert.Equal(t, "Бұғатталған сайт", AlertTitle("KZ"))
	assert.Equal(t, "Blocked site", AlertTitle("de"))
}
