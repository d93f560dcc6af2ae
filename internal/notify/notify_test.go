package notify

import (
	"context"
	"errors"
	"testing"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type mockCreator struct {
	sent []*twilioApi.CreateMessageParams
	err  error
}

func (m *mockCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	m.sent = append(m.sent, params)
	if m.err != nil {
		return nil, m.err
	}
	return &twilioApi.ApiV2010Message{}, nil
}

func TestTwilioNotifier_SMS(t *testing.T) {
	mock := &mockCreator{}
	n := newTwilioNotifier(mock, "+15550001111", "")

	if err := n.Notify(context.Background(), "+34 600 12 34 56", "Staff replied"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(mock.sent))
	}
	p := mock.sent[0]
	if *p.To != "+34600123456" || *p.From != "+15550001111" || *p.Body != "Staff replied" {
		t.Errorf("unexpected params to=%q from=%q body=%q", *p.To, *p.From, *p.Body)
	}
}

func TestTwilioNotifier_WhatsAppPrefix(t *testing.T) {
	mock := &mockCreator{}
	n := newTwilioNotifier(mock, "whatsapp:+15550001111", "")
	if n.channel != ChannelWhatsApp {
		t.Fatalf("expected whatsapp channel, got %q", n.channel)
	}
	if err := n.Notify(context.Background(), "0034600123456", "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := mock.sent[0]
	if *p.To != "whatsapp:+34600123456" || *p.From != "whatsapp:+15550001111" {
		t.Errorf("unexpected addresses to=%q from=%q", *p.To, *p.From)
	}
}

func TestTwilioNotifier_Errors(t *testing.T) {
	mock := &mockCreator{err: errors.New("boom")}
	n := newTwilioNotifier(mock, "+15550001111", ChannelSMS)

	if err := n.Notify(context.Background(), "+34600123456", "hi"); err == nil {
		t.Error("expected API error to be returned")
	}
	if err := n.Notify(context.Background(), "call me", "hi"); !errors.Is(err, ErrInvalidRecipient) {
		t.Errorf("expected ErrInvalidRecipient, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Notify(ctx, "+34600123456", "hi"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewTwilioNotifier_MissingConfig(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewTwilioNotifier(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := NewTwilioNotifier(WithAccountSID("AC123"), WithAuthToken("tok")); !errors.Is(err, ErrMissingSender) {
		t.Errorf("expected ErrMissingSender, got %v", err)
	}
	n, err := NewTwilioNotifier(WithAccountSID("AC123"), WithAuthToken("tok"), WithFrom("+15550001111"), WithChannel(ChannelWhatsApp))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.channel != ChannelWhatsApp {
		t.Errorf("expected whatsapp channel, got %q", n.channel)
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+1 (555) 000-1111", "+15550001111", false},
		{"0034 600.12.34.56", "+34600123456", false},
		{"12345", "", true},
		{"+34 600 abc", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizePhone(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, %v; want %q, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestNoopNotifier(t *testing.T) {
	var n Notifier = NoopNotifier{}
	if err := n.Notify(context.Background(), "+34600123456", "hi"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
