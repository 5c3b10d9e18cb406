// internal/notification/push.go

package notifications

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMPushService implements push notifications using Firebase Cloud Messaging
type FCMPushService struct {
	client *messaging.Client
}

// NewFCMPushService creates a new FCM push service. credentialsJSON wins
// over credentialsPath when both are set.
func NewFCMPushService(ctx context.Context, credentialsPath, credentialsJSON string) (PushService, error) {
	var opt option.ClientOption
	switch {
	case credentialsJSON != "":
		opt = option.WithCredentialsJSON([]byte(credentialsJSON))
	case credentialsPath != "":
		opt = option.WithCredentialsFile(credentialsPath)
	default:
		return nil, errors.New("FIREBASE_CREDENTIALS_PATH or FIREBASE_CREDENTIALS_JSON must be set")
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	return &FCMPushService{client: client}, nil
}

// SendPush sends a push notification to every token of the notification
func (s *FCMPushService) SendPush(ctx context.Context, notification *PushNotification) error {
	if len(notification.Tokens) == 0 {
		return errors.New("no tokens provided")
	}

	data := make(map[string]string, len(notification.Data)+2)
	for k, v := range notification.Data {
		data[k] = v
	}
	data["title"] = notification.Title
	data["body"] = notification.Body

	androidConfig := &messaging.AndroidConfig{
		Priority:    mapPriority(notification.Priority),
		CollapseKey: notification.CollapseKey,
		Notification: &messaging.AndroidNotification{
			Sound:       notification.Sound,
			ClickAction: "FLUTTER_NOTIFICATION_CLICK",
		},
	}

	badge := notification.Badge
	apnsConfig := &messaging.APNSConfig{
		Headers: map[string]string{
			"apns-priority": apnsPriority(notification.Priority),
		},
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Alert: &messaging.ApsAlert{
					Title: notification.Title,
					Body:  notification.Body,
				},
				Badge: &badge,
				Sound: notification.Sound,
			},
		},
	}

	message := &messaging.MulticastMessage{
		Tokens: notification.Tokens,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data:    data,
		Android: androidConfig,
		APNS:    apnsConfig,
	}

	response, err := s.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}

	if response.FailureCount > 0 {
		for idx, resp := range response.Responses {
			if resp.Error != nil {
				log.Printf("Failed to send push to token %d: %v", idx, resp.Error)
			}
		}
		if response.SuccessCount == 0 {
			return fmt.Errorf("all %d push deliveries failed", response.FailureCount)
		}
	}

	log.Printf("Successfully sent %d push notifications", response.SuccessCount)
	return nil
}

func mapPriority(priority Priority) string {
	if priority == PriorityLow {
		return "normal"
	}
	return "high"
}

func apnsPriority(priority Priority) string {
	if priority == PriorityLow {
		return "5"
	}
	return "10"
}

// MockPushService records notifications instead of sending them
type MockPushService struct {
	mu                sync.Mutex
	SentNotifications []*PushNotification
}

func NewMockPushService() *MockPushService {
	return &MockPushService{}
}

func (m *MockPushService) SendPush(ctx context.Context, notification *PushNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentNotifications = append(m.SentNotifications, notification)
	log.Printf("Mock: Sending push notification to %d devices: %s", len(notification.Tokens), notification.Title)
	return nil
}

func (m *MockPushService) Sent() []*PushNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*PushNotification(nil), m.SentNotifications...)
}
