package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

var ticketCreatedTemplate = template.Must(template.ParseFS(templatesFS, "templates/ticket_created.gohtml"))

// ErrMailAPILimit means the mail provider throttled us.
var ErrMailAPILimit = errors.New("mail api limit reached")

var priorityColors = map[string]string{
	"low":    "#10b981",
	"medium": "#f59e0b",
	"high":   "#ef4444",
	"urgent": "#dc2626",
}

// Sender is the part of the SendGrid client the notifier uses.
type Sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailConfig configures the support inbox notifier.
type EmailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	To        string
}

// EmailNotifier mails a ticket summary to the support inbox.
type EmailNotifier struct {
	sender Sender
	from   *mail.Email
	to     *mail.Email
}

// NewEmailNotifier builds a SendGrid-backed notifier.
func NewEmailNotifier(cfg EmailConfig) (*EmailNotifier, error) {
	if cfg.APIKey == "" || cfg.FromEmail == "" || cfg.To == "" {
		return nil, errors.New("incomplete email notifier config")
	}
	return NewEmailNotifierWithSender(sendgrid.NewSendClient(cfg.APIKey), cfg), nil
}

// NewEmailNotifierWithSender builds a notifier on top of any Sender.
func NewEmailNotifierWithSender(sender Sender, cfg EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		sender: sender,
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
		to:     mail.NewEmail("", cfg.To),
	}
}

type ticketCreatedView struct {
	TicketSummary
	PriorityColor    string
	DescriptionLines []string
}

// RenderTicketCreated returns the subject and HTML body of the new-ticket email.
func RenderTicketCreated(summary TicketSummary) (string, string, error) {
	color, ok := priorityColors[string(summary.Priority)]
	if !ok {
		color = "#6b7280"
	}
	view := ticketCreatedView{
		TicketSummary:    summary,
		PriorityColor:    color,
		DescriptionLines: strings.Split(summary.Description, "\n"),
	}
	var body bytes.Buffer
	if err := ticketCreatedTemplate.Execute(&body, view); err != nil {
		return "", "", fmt.Errorf("render ticket email: %w", err)
	}
	return "New ticket: " + summary.Title, body.String(), nil
}

// TicketCreated implements Notifier.
func (n *EmailNotifier) TicketCreated(ctx context.Context, summary TicketSummary) error {
	subject, html, err := RenderTicketCreated(summary)
	if err != nil {
		return err
	}
	plain := fmt.Sprintf("%s\nPriority: %s\nFrom: %s <%s>\n\n%s\n\n%s",
		summary.Title, summary.Priority, summary.OwnerName, summary.OwnerEmail, summary.Description, summary.URL)

	message := mail.NewSingleEmail(n.from, subject, n.to, plain, html)
	resp, err := n.sender.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send ticket email: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrMailAPILimit
	case resp.StatusCode >= 300:
		return fmt.Errorf("send ticket email: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// EscalationRequested implements Notifier. Escalations go to the operator chat only.
func (n *EmailNotifier) EscalationRequested(context.Context, Escalation) error {
	return nil
}
