package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/catalogfi/autoswap/pkg/cycle"
)

var ErrInvalidWebhook = errors.New("invalid discord webhook url")

// DefaultTimeout bounds a single webhook post.
const DefaultTimeout = 5 * time.Second

// Nop drops every record.
type Nop struct{}

func (Nop) Notify(ctx context.Context, record cycle.Record) error {
	return nil
}

// Discord posts a line per iteration to a Discord channel webhook.
type Discord struct {
	session *discordgo.Session
	id      string
	token   string
}

// NewDiscord parses a webhook url of the form https://discord.com/api/webhooks/<id>/<token>.
func NewDiscord(webhook string) (*Discord, error) {
	id, token, err := ParseWebhook(webhook)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, err
	}
	session.Client.Timeout = DefaultTimeout
	return &Discord{
		session: session,
		id:      id,
		token:   token,
	}, nil
}

// WithTimeout changes how long a webhook post may take.
func (discord *Discord) WithTimeout(timeout time.Duration) *Discord {
	discord.session.Client.Timeout = timeout
	return discord
}

// Notify posts the record. The context is only checked before the post; once sent, the request is bounded by the
// client timeout rather than by ctx.
func (discord *Discord) Notify(ctx context.Context, record cycle.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := discord.session.WebhookExecute(discord.id, discord.token, false, &discordgo.WebhookParams{
		Content: Message(record),
	})
	return err
}

func ParseWebhook(webhook string) (string, string, error) {
	u, err := url.Parse(webhook)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidWebhook, u.Scheme)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[0] != "api" || parts[len(parts)-3] != "webhooks" {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidWebhook, webhook)
	}
	id, token := parts[len(parts)-2], parts[len(parts)-1]
	if id == "" || token == "" {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidWebhook, webhook)
	}
	return id, token, nil
}

// Message formats a record as a single line.
func Message(record cycle.Record) string {
	if record.Err != nil {
		return fmt.Sprintf("❌ [Swap] #%d %v failed: %v", record.Iteration, record.Direction, record.Err)
	}
	msg := fmt.Sprintf("✅ [Swap] #%d %v %v, tx %v", record.Iteration, record.Direction, record.Result.Amount, record.Result.TxHash.Hex())
	if record.Result.QuoteUnavailable {
		msg += " (no quote)"
	}
	return msg
}
