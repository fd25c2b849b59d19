package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/yourusername/complaint-tracker/internal/domain/entity"
)

const resendMaxAttempts = 3

// Notifier tells complainants about progress on their complaints.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, toEmail string, complaint *entity.Complaint) error
}

// NoopNotifier is used when no email provider is configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyStatusChange(ctx context.Context, toEmail string, complaint *entity.Complaint) error {
	log.Printf("[Notifier] noop status change complaint=%d status=%s to=%s", complaint.ID, complaint.Status, toEmail)
	return nil
}

// ResendNotifier sends notifications through the Resend API.
type ResendNotifier struct {
	from   string
	client *resend.Client
}

func NewResendNotifier(apiKey, from string) (*ResendNotifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendNotifier{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (n *ResendNotifier) NotifyStatusChange(ctx context.Context, toEmail string, complaint *entity.Complaint) error {
	if toEmail == "" || complaint == nil {
		return fmt.Errorf("recipient and complaint are required")
	}

	params := statusChangeEmail(n.from, toEmail, complaint)
	// one email per complaint state, even if the admin resubmits the form
	options := &resend.SendEmailOptions{
		IdempotencyKey: fmt.Sprintf("complaint-%d-%s-%d", complaint.ID, complaint.Status, complaint.UpdatedAt.Unix()),
	}

	var lastErr error
	for attempt := 0; attempt < resendMaxAttempts; attempt++ {
		_, err := n.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}
		return fmt.Errorf("resend send failed: %w", err)
	}
	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func statusChangeEmail(from, to string, complaint *entity.Complaint) *resend.SendEmailRequest {
	status := strings.ReplaceAll(string(complaint.Status), "_", " ")
	subject := fmt.Sprintf("Complaint #%d is now %s", complaint.ID, strings.ToLower(status))

	text := fmt.Sprintf("Your complaint #%d (%s at %s) is now %s.", complaint.ID, complaint.Category, complaint.Location, status)
	body := fmt.Sprintf("<p>Your complaint <strong>#%d</strong> (%s at %s) is now <strong>%s</strong>.</p>",
		complaint.ID, html.EscapeString(string(complaint.Category)), html.EscapeString(complaint.Location), html.EscapeString(status))
	if complaint.AdminNotes != "" {
		text += "\n\nNotes: " + complaint.AdminNotes
		body += "<p>Notes: " + html.EscapeString(complaint.AdminNotes) + "</p>"
	}

	return &resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Text:    text,
		Html:    body,
	}
}

// resendRetryDelay reports whether err is worth another attempt, and after
// how long.
func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}
	return 0, false
}
