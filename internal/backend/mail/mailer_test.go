package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]byte, error) {
	return f.data, f.err
}

type fakeClient struct {
	sent     *sgmail.SGMailV3
	response *rest.Response
	err      error
}

func (c *fakeClient) SendWithContext(_ context.Context, email *sgmail.SGMailV3) (*rest.Response, error) {
	c.sent = email
	return c.response, c.err
}

var testConfig = Config{From: "hello@continual.ai", FromName: "Continual", Subject: "Your DALL-E 2 image is ready!"}

func TestSendGridMailer_SendImage(t *testing.T) {
	client := &fakeClient{response: &rest.Response{StatusCode: 202}}
	m := &SendGridMailer{client: client, fetcher: &fakeFetcher{data: []byte("png-bytes")}, config: testConfig}

	if err := m.SendImage(context.Background(), "visitor@example.com", "https://images.example.com/1.png"); err != nil {
		t.Fatalf("SendImage error: %v", err)
	}

	sent := client.sent
	if sent == nil {
		t.Fatal("expected a message to be sent")
	}
	if sent.From.Address != "hello@continual.ai" || sent.From.Name != "Continual" {
		t.Errorf("unexpected sender %+v", sent.From)
	}
	if sent.Subject != testConfig.Subject {
		t.Errorf("unexpected subject %q", sent.Subject)
	}
	if len(sent.Personalizations) != 1 || sent.Personalizations[0].To[0].Address != "visitor@example.com" {
		t.Errorf("unexpected recipients %+v", sent.Personalizations)
	}
	if len(sent.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %d", len(sent.Attachments))
	}
	a := sent.Attachments[0]
	if a.Filename != "image.png" || a.Type != "image/png" || a.Disposition != "attachment" {
		t.Errorf("unexpected attachment %+v", a)
	}
	if a.Content != base64.StdEncoding.EncodeToString([]byte("png-bytes")) {
		t.Error("attachment content is not the base64 encoded image")
	}
}

func TestSendGridMailer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *fakeFetcher
		client  *fakeClient
	}{
		{
			name:    "image fetch fails",
			fetcher: &fakeFetcher{err: errors.New("status 404")},
			client:  &fakeClient{response: &rest.Response{StatusCode: 202}},
		},
		{
			name:    "transport error",
			fetcher: &fakeFetcher{data: []byte("x")},
			client:  &fakeClient{err: errors.New("connection reset")},
		},
		{
			name:    "rejected",
			fetcher: &fakeFetcher{data: []byte("x")},
			client:  &fakeClient{response: &rest.Response{StatusCode: 401, Body: `{"errors":[{"message":"unauthorized"}]}`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &SendGridMailer{client: tt.client, fetcher: tt.fetcher, config: testConfig}
			if err := m.SendImage(context.Background(), "visitor@example.com", "u"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRenderBody_ContainsTweetLink(t *testing.T) {
	body, err := renderBody()
	if err != nil {
		t.Fatalf("renderBody error: %v", err)
	}
	if !strings.Contains(body, `href="https://twitter.com/intent/tweet?text=`) {
		t.Errorf("body lacks tweet link: %s", body)
	}
	if !strings.Contains(body, "Thanks for coming by the Continual booth") {
		t.Error("body lacks greeting")
	}
}

func TestTweetLink(t *testing.T) {
	u, err := url.Parse(TweetLink())
	if err != nil {
		t.Fatalf("url.Parse error: %v", err)
	}
	if got := u.Query().Get("text"); got != shareText {
		t.Errorf("decoded share text = %q, want %q", got, shareText)
	}
	if strings.Contains(u.RawQuery, " ") {
		t.Error("share text must be URL encoded")
	}
}

func TestNewMailer(t *testing.T) {
	if _, ok := NewMailer("", &fakeFetcher{}, testConfig).(LogMailer); !ok {
		t.Error("expected LogMailer without API key")
	}
	if _, ok := NewMailer("SG.test", &fakeFetcher{}, testConfig).(*SendGridMailer); !ok {
		t.Error("expected SendGridMailer with API key")
	}
	if err := (LogMailer{}).SendImage(context.Background(), "a@b.c", "u"); err != nil {
		t.Errorf("LogMailer error: %v", err)
	}
}
