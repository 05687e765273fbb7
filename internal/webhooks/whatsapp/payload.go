package whatsappwebhook

import (
	"strings"

	"github.com/angelmondragon/wacart-backend/internal/ingest"
)

const (
	TypeReceived = "ReceivedCallback"
	TypeStatus   = "MessageStatusCallback"
)

type textContent struct {
	Message string `json:"message"`
}

type mediaContent struct {
	Caption string `json:"caption"`
}

// Payload is the provider callback body. Message and status callbacks share
// one endpoint and are told apart by Type, or by the presence of Status+IDs.
type Payload struct {
	Type             string        `json:"type"`
	InstanceID       string        `json:"instanceId"`
	MessageID        string        `json:"messageId"`
	Phone            string        `json:"phone"`
	ParticipantPhone string        `json:"participantPhone"`
	ConnectedPhone   string        `json:"connectedPhone"`
	ChatName         string        `json:"chatName"`
	SenderName       string        `json:"senderName"`
	IsGroup          bool          `json:"isGroup"`
	FromMe           bool          `json:"fromMe"`
	Text             *textContent  `json:"text,omitempty"`
	Image            *mediaContent `json:"image,omitempty"`
	Status           string        `json:"status"`
	IDs              []string      `json:"ids"`
	Moment           int64         `json:"momment"`
}

func (p Payload) IsStatusCallback() bool {
	if p.Type == TypeStatus {
		return true
	}
	return p.Type == "" && strings.TrimSpace(p.Status) != "" && len(p.IDs) > 0
}

// StatusIDs falls back to MessageID for single-message status callbacks.
func (p Payload) StatusIDs() []string {
	if len(p.IDs) > 0 {
		return p.IDs
	}
	if p.MessageID != "" {
		return []string{p.MessageID}
	}
	return nil
}

func (p Payload) body() string {
	switch {
	case p.Text != nil && p.Text.Message != "":
		return p.Text.Message
	case p.Image != nil:
		return p.Image.Caption
	default:
		return ""
	}
}

// Message maps a received callback onto the ingestion input. In groups the
// chat phone is the group id and the author is the participant.
func (p Payload) Message() ingest.Message {
	sender := p.Phone
	chatID := ""
	if p.IsGroup {
		sender = p.ParticipantPhone
		chatID = p.Phone
	}
	return ingest.Message{
		EventID:        p.MessageID,
		InstanceID:     p.InstanceID,
		ConnectedPhone: p.ConnectedPhone,
		ChatID:         chatID,
		ChatName:       p.ChatName,
		SenderPhone:    sender,
		SenderName:     p.SenderName,
		Text:           p.body(),
		IsGroup:        p.IsGroup,
		FromMe:         p.FromMe,
	}
}
