// Package notify delivers short text notifications to members over Twilio
// SMS or WhatsApp.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier sends a text message to a phone number in E.164 form.
type Notifier interface {
	Notify(ctx context.Context, to string, body string) error
}

// Channels supported by TwilioNotifier.
const (
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

var (
	// ErrMissingCredentials means the Twilio account SID or auth token is unset.
	ErrMissingCredentials = errors.New("twilio account SID and auth token must be provided")
	// ErrMissingSender means no sending number is configured.
	ErrMissingSender = errors.New("twilio from number must be provided")
	// ErrInvalidRecipient means the recipient is not a phone number.
	ErrInvalidRecipient = errors.New("invalid recipient phone number")
)

// Opts holds configuration options for the Twilio notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
	Channel    string
}

// Option defines a configuration option for the Twilio notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the sending number, with or without the "whatsapp:" prefix.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// WithChannel selects ChannelSMS or ChannelWhatsApp.
func WithChannel(channel string) Option {
	return func(o *Opts) { o.Channel = channel }
}

// messageCreator is the part of the Twilio REST client used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioNotifier sends notifications through the Twilio Messages API.
type TwilioNotifier struct {
	api     messageCreator
	from    string
	channel string
}

// NewTwilioNotifier creates a notifier. Unset options fall back to
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER. A from number
// carrying the "whatsapp:" prefix selects the WhatsApp channel.
func NewTwilioNotifier(opts ...Option) (*TwilioNotifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio notifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.From == "" {
		return nil, ErrMissingSender
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioNotifier(client.Api, cfg.From, cfg.Channel), nil
}

func newTwilioNotifier(api messageCreator, from, channel string) *TwilioNotifier {
	if strings.HasPrefix(from, "whatsapp:") {
		from = strings.TrimPrefix(from, "whatsapp:")
		channel = ChannelWhatsApp
	}
	if channel != ChannelWhatsApp {
		channel = ChannelSMS
	}
	return &TwilioNotifier{api: api, from: from, channel: channel}
}

// address formats a phone number for the configured channel.
func (n *TwilioNotifier) address(number string) string {
	if n.channel == ChannelWhatsApp {
		return "whatsapp:" + number
	}
	return number
}

// Notify sends body to the given phone number.
func (n *TwilioNotifier) Notify(ctx context.Context, to string, body string) error {
	number, err := NormalizePhone(to)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.address(number))
	params.SetFrom(n.address(n.from))
	params.SetBody(body)

	if _, err := n.api.CreateMessage(params); err != nil {
		slog.Error("TwilioNotifier.Notify failed", "channel", n.channel, "error", err)
		return fmt.Errorf("failed to send notification: %w", err)
	}
	slog.Debug("TwilioNotifier.Notify sent", "channel", n.channel)
	return nil
}

// NormalizePhone strips formatting from a phone number and returns it in
// "+<digits>" form.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.' || r == '+':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, raw)
		}
	}
	d := strings.TrimPrefix(digits.String(), "00")
	if len(d) < 8 || len(d) > 15 {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, raw)
	}
	return "+" + d, nil
}

// NoopNotifier logs and discards notifications. It is used when Twilio is
// not configured.
type NoopNotifier struct{}

// Notify implements Notifier.
func (NoopNotifier) Notify(ctx context.Context, to string, body string) error {
	slog.Debug("NoopNotifier.Notify: notification dropped", "length", len(body))
	return nil
}
