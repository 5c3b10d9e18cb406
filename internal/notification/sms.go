package notifications

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioSMSService implements SMS notifications using Twilio
type TwilioSMSService struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSMSService creates a new Twilio SMS service
func NewTwilioSMSService(accountSID, authToken, from string) (SMSService, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("incomplete Twilio configuration")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSMSService{
		client: client,
		from:   from,
	}, nil
}

// SendSMS sends a single SMS
func (s *TwilioSMSService) SendSMS(ctx context.Context, notification *SMSNotification) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(notification.To)
	params.SetFrom(s.from)
	params.SetBody(notification.Message)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", notification.To, err)
	}

	if resp.Sid != nil {
		log.Printf("Successfully sent SMS to %s with SID: %s", notification.To, *resp.Sid)
	}
	return nil
}

// MockSMSService records messages instead of sending them
type MockSMSService struct {
	mu           sync.Mutex
	SentMessages []*SMSNotification
}

func NewMockSMSService() *MockSMSService {
	return &MockSMSService{}
}

func (m *MockSMSService) SendSMS(ctx context.Context, notification *SMSNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, notification)
	log.Printf("Mock: Sending SMS to %s: %s", notification.To, notification.Message)
	return nil
}

func (m *MockSMSService) Sent() []*SMSNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*SMSNotification(nil), m.SentMessages...)
}
