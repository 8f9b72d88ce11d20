package services

import (
	"GuardianAI/models"
	"GuardianAI/repositories"
	"context"
	"fmt"
	"log"
	"strings"

	"firebase.google.com/go/v4/messaging"
)

const maxAlertHosts = 3

// PushSender is the slice of *messaging.Client the alerts need.
type PushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// alertTitles holds the "Blocked site" title per guardian language; English is the default.
var alertTitles = map[string]string{
	"en": "Blocked site",
	"ru": "Заблокированный сайт",
	"kz": "Бұғатталған сайт",
}

// NotificationService pushes blocked-access alerts to the guardians of a child.
type NotificationService struct {
	FCMClient    PushSender
	GuardianRepo repositories.GuardianRepository
}

func NewNotificationService(client PushSender, guardianRepo repositories.GuardianRepository) *NotificationService {
	return &NotificationService{
		FCMClient:    client,
		GuardianRepo: guardianRepo,
	}
}

// SendNotification sends one push message to a device token.
func (s *NotificationService) SendNotification(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	if deviceToken == "" {
		return fmt.Errorf("device token is empty")
	}
	if s.FCMClient == nil {
		return fmt.Errorf("push client is not configured")
	}

	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:  data,
		Token: deviceToken,
	}

	resp, err := s.FCMClient.Send(ctx, message)
	if err != nil {
		log.Printf("[FCM] failed to send notification: %v", err)
		return err
	}

	log.Printf("[FCM] notification sent. ID: %s, Title: %s", resp, title)
	return nil
}

// NotifyBlockedAccess tells every linked guardian with a device token which
// hosts were blocked. Failures are logged only.
func (s *NotificationService) NotifyBlockedAccess(ctx context.Context, child models.Child, hosts []string) {
	if s.FCMClient == nil || len(hosts) == 0 {
		return
	}

	guardians, err := s.GuardianRepo.FindByChildID(ctx, child.ID)
	if err != nil {
		log.Printf("[FCM] failed to load guardians of child %d: %v", child.ID, err)
		return
	}

	body := BlockedAccessBody(child, hosts)
	data := map[string]string{
		"type":       "blocked_site",
		"child_hash": child.ChildHash,
		"count":      fmt.Sprintf("%d", len(hosts)),
	}
	for _, guardian := range guardians {
		if guardian.DeviceToken == "" {
			continue
		}
		if err := s.SendNotification(ctx, guardian.DeviceToken, AlertTitle(guardian.Lang), body, data); err != nil {
			log.Printf("[FCM] error sending alert to guardian %d: %v", guardian.ID, err)
		}
	}
}

func AlertTitle(lang string) string {
	if title, ok := alertTitles[strings.ToLower(lang)]; ok {
		return title
	}
	return alertTitles["en"]
}

// BlockedAccessBody lists up to three distinct hosts, e.g. "Anna: a.com, b.com and 2 more".
func BlockedAccessBody(child models.Child, hosts []string) string {
	seen := make(map[string]bool)
	var unique []string
	for _, host := range hosts {
		if host != "" && !seen[host] {
			seen[host] = true
			unique = append(unique, host)
		}
	}

	shown := unique
	if len(shown) > maxAlertHosts {
		shown = shown[:maxAlertHosts]
	}
	body := fmt.Sprintf("%s: %s", child.DisplayName(), strings.Join(shown, ", "))
	if extra := len(unique) - len(shown); extra > 0 {
		body += fmt.Sprintf(" and %d more", extra)
	}
	return body
}
