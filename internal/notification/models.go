// internal/notification/models.go

package notifications

import "context"

// NotificationType identifies what a message is about
type NotificationType string

const (
	TypeGhostingWarning NotificationType = "ghosting_warning"
	TypeMatchActivated  NotificationType = "match_activated"
	TypeButterflyReward NotificationType = "butterfly_reward"
	TypeHeartSyncResult NotificationType = "heart_sync_result"
	TypeMilestone       NotificationType = "milestone_achieved"
	TypeNewMessage      NotificationType = "new_message"
)

// DeliveryChannel is a way of reaching a member outside the app
type DeliveryChannel string

const (
	ChannelPush  DeliveryChannel = "push"
	ChannelEmail DeliveryChannel = "email"
	ChannelSMS   DeliveryChannel = "sms"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// EmailNotification represents an email notification
type EmailNotification struct {
	To      string
	Subject string
	Body    string
	HTML    string
}

// SMSNotification represents an SMS notification
type SMSNotification struct {
	To      string
	Message string
}

// PushNotification represents a push notification
type PushNotification struct {
	Tokens      []string
	Title       string
	Body        string
	Data        map[string]string
	Badge       int
	Sound       string
	Priority    Priority
	CollapseKey string
}

// External service interfaces
type PushService interface {
	SendPush(ctx context.Context, notification *PushNotification) error
}

type EmailService interface {
	SendEmail(ctx context.Context, notification *EmailNotification) error
}

type SMSService interface {
	SendSMS(ctx context.Context, notification *SMSNotification) error
}
