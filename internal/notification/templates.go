// internal/notification/templates.go

package notifications

import (
	"bytes"
	"fmt"
	"html/template"
)

const baseEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: linear-gradient(135deg, #f093fb 0%, #f5576c 100%); color: white; padding: 30px; text-align: center; border-radius: 10px 10px 0 0; }
        .content { background: white; padding: 30px; border: 1px solid #e0e0e0; border-radius: 0 0 10px 10px; }
        .footer { text-align: center; padding: 20px; color: #666; font-size: 14px; }
    </style>
</head>
<body>
    <div class="header"><h1>{{.Title}}</h1></div>
    <div class="content"><p>{{.Body}}</p></div>
    <div class="footer"><p>Heartwing</p></div>
</body>
</html>
`

var emailLayout = template.Must(template.New("email").Parse(baseEmailTemplate))

// Message is a rendered title and body pair
type Message struct {
	Title string
	Body  string
}

// RenderEmail wraps a message in the HTML layout. Values are escaped.
func RenderEmail(msg Message) (string, error) {
	var buf bytes.Buffer
	if err := emailLayout.Execute(&buf, msg); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

// GhostingWarningMessage is sent to the member who went quiet.
func GhostingWarningMessage(partnerName string) Message {
	if partnerName == "" {
		partnerName = "Your match"
	}
	return Message{
		Title: "Your butterfly is getting restless 🦋",
		Body:  fmt.Sprintf("%s is waiting to hear from you. Send a message before your connection fades.", partnerName),
	}
}

// EventMessage returns the push text for a real-time event type. ok is false
// for events that do not warrant a push.
func EventMessage(t NotificationType, data map[string]string) (msg Message, ok bool) {
	switch t {
	case TypeMatchActivated:
		return Message{Title: "It's a match! 💞", Body: "You both liked each other. A monarch butterfly just landed."}, true
	case TypeButterflyReward:
		tier := data["tier"]
		if tier == "" {
			return Message{}, false
		}
		return Message{Title: "A butterfly landed 🦋", Body: fmt.Sprintf("A %s butterfly is waiting to be collected.", tier)}, true
	case TypeHeartSyncResult:
		return Message{Title: "Heart sync complete 💓", Body: fmt.Sprintf("You reached %s%% sync.", data["sync_percentage"])}, true
	case TypeMilestone:
		return Message{Title: "New milestone ✨", Body: "Your conversation reached a new milestone."}, true
	case TypeNewMessage:
		return Message{Title: "New message", Body: "You have a new message waiting."}, true
	case TypeGhostingWarning:
		return GhostingWarningMessage(data["partner"]), true
	}
	return Message{}, false
}
