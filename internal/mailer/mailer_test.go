package mailer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSender struct {
	calls   int
	success bool
	errMsg  string
}

func (f *fakeSender) Send(ctx context.Context, to []string, subject, html string) (bool, string) {
	f.calls++
	return f.success, f.errMsg
}

func TestSMTPSender_NoHostConfigured(t *testing.T) {
	s := NewSMTPSender(Config{})
	ok, msg := s.Send(context.Background(), []string{"a@example.com"}, "s", "<p>x</p>")
	assert.False(t, ok)
	assert.Contains(t, msg, "not configured")
}

func TestSMTPSender_NoRecipients(t *testing.T) {
	s := NewSMTPSender(Config{Host: "smtp.example.com"})
	ok, msg := s.Send(context.Background(), nil, "s", "<p>x</p>")
	assert.False(t, ok)
	assert.Contains(t, msg, "no recipients")
}

func TestStripTags(t *testing.T) {
	cases := map[string]string{
		"<p>Hello <b>world</b></p>": "Hello world",
		"plain text":                "plain text",
		"<div>a</div><div>b</div>":  "ab",
		"  <p>trim me</p>  ":        "trim me",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripTags(in), "input %q", in)
	}
}

func TestRateLimitedSender_DelegatesResult(t *testing.T) {
	fake := &fakeSender{success: true}
	rl := NewRateLimitedSender(fake, 600)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ok, msg := rl.Send(ctx, []string{"a@example.com"}, "s", "h")
	assert.True(t, ok)
	assert.Empty(t, msg)
	assert.Equal(t, 1, fake.calls)
}
