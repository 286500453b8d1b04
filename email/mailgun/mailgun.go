package mailgun

import (
	"context"
	"time"

	mailgunv4 "github.com/mailgun/mailgun-go/v4"
	"github.com/sigilo/go-sigilo-server/email"
)

// Handler delivers certificate emails through the Mailgun API
type Handler struct {
	mg   *mailgunv4.MailgunImpl
	from string
}

func NewHandler(domain, apiKey, from string) *Handler {
	return &Handler{
		mg:   mailgunv4.NewMailgun(domain, apiKey),
		from: from,
	}
}

func (h *Handler) Send(ctx context.Context, to, subject, body string, attachment *email.Attachment) (string, error) {
	message := h.mg.NewMessage(h.from, subject, body, to)
	if attachment != nil {
		message.AddBufferAttachment(attachment.Filename, attachment.Content)
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()
	_, id, err := h.mg.Send(ctx, message)
	if err != nil {
		return "", err
	}
	return id, nil
}
