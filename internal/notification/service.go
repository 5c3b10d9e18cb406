package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/imadgeboyega/heartwing-backend/internal/butterfly"
)

var ErrNoChannel = errors.New("member has no reachable delivery channel")

// MemberLookup resolves the contact details of a member.
type MemberLookup interface {
	GetMember(ctx context.Context, userID int64) (*butterfly.Member, error)
}

type Options struct {
	Push  PushService
	Email EmailService
	SMS   SMSService

	EnablePush  bool
	EnableEmail bool
	EnableSMS   bool
}

// Service delivers out-of-app notifications over push, email and SMS.
type Service struct {
	members MemberLookup
	push    PushService
	email   EmailService
	sms     SMSService
	enabled map[DeliveryChannel]bool
}

func NewService(members MemberLookup, opts Options) *Service {
	return &Service{
		members: members,
		push:    opts.Push,
		email:   opts.Email,
		sms:     opts.SMS,
		enabled: map[DeliveryChannel]bool{
			ChannelPush:  opts.EnablePush && opts.Push != nil,
			ChannelEmail: opts.EnableEmail && opts.Email != nil,
			ChannelSMS:   opts.EnableSMS && opts.SMS != nil,
		},
	}
}

// SetMembers wires the member lookup after construction.
func (s *Service) SetMembers(members MemberLookup) {
	s.members = members
}

// GhostingWarning tells the silent member that the partner is waiting. It
// succeeds when at least one channel delivered.
func (s *Service) GhostingWarning(ctx context.Context, silent, partner *butterfly.Member, matchID int64) error {
	if silent == nil {
		return ErrNoChannel
	}
	partnerName := ""
	if partner != nil {
		partnerName = partner.Username
	}
	msg := GhostingWarningMessage(partnerName)

	var (
		attempted int
		delivered int
		errs      []error
	)
	send := func(ch DeliveryChannel, fn func() error) {
		attempted++
		if err := fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
			return
		}
		delivered++
	}

	if s.enabled[ChannelPush] && len(silent.PushTokens) > 0 {
		send(ChannelPush, func() error {
			return s.push.SendPush(ctx, &PushNotification{
				Tokens:      silent.PushTokens,
				Title:       msg.Title,
				Body:        msg.Body,
				Priority:    PriorityHigh,
				CollapseKey: fmt.Sprintf("ghosting-%d", matchID),
				Data: map[string]string{
					"type":     string(TypeGhostingWarning),
					"match_id": strconv.FormatInt(matchID, 10),
				},
			})
		})
	}
	if s.enabled[ChannelEmail] && silent.Email != nil && *silent.Email != "" {
		send(ChannelEmail, func() error {
			html, err := RenderEmail(msg)
			if err != nil {
				return err
			}
			return s.email.SendEmail(ctx, &EmailNotification{
				To:      *silent.Email,
				Subject: msg.Title,
				Body:    msg.Body,
				HTML:    html,
			})
		})
	}
	if s.enabled[ChannelSMS] && silent.Phone != nil && *silent.Phone != "" {
		send(ChannelSMS, func() error {
			return s.sms.SendSMS(ctx, &SMSNotification{
				To:      *silent.Phone,
				Message: msg.Body,
			})
		})
	}

	if attempted == 0 {
		return ErrNoChannel
	}
	if delivered == 0 {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		log.Printf("Ghosting warning for member %d partially failed: %v", silent.ID, err)
	}
	return nil
}

// NotifyOffline pushes a real-time event to a member who is not connected.
// Events without a push text and members without tokens are skipped.
func (s *Service) NotifyOffline(ctx context.Context, userID int64, eventType string, payload interface{}) error {
	if !s.enabled[ChannelPush] || s.members == nil {
		return nil
	}
	data := flatten(payload)
	msg, ok := EventMessage(NotificationType(eventType), data)
	if !ok {
		return nil
	}

	member, err := s.members.GetMember(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up member %d: %w", userID, err)
	}
	if len(member.PushTokens) == 0 {
		return nil
	}

	data["type"] = eventType
	return s.push.SendPush(ctx, &PushNotification{
		Tokens:   member.PushTokens,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     data,
		Priority: PriorityMedium,
	})
}

// flatten keeps the scalar top-level fields of a JSON payload, which is what
// FCM data maps can carry.
func flatten(payload interface{}) map[string]string {
	out := make(map[string]string)
	raw, err := json.Marshal(payload)
	if err != nil {
		return out
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out
	}
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		}
	}
	return out
}
