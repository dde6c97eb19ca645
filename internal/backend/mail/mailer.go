package mail

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/url"
)

// Mailer delivers a visitor's generated image by email
type Mailer interface {
	SendImage(ctx context.Context, email, imageURL string) error
}

// Config describes the sender and subject of booth emails
type Config struct {
	From     string
	FromName string
	Subject  string
}

const shareText = "Made with my #ContinualImagination and @OpenAI’s DALL-E 2 in the @continual_ai booth at #TMLS2022"

var bodyTemplate = template.Must(template.New("body").Parse(`<p>Hey,</p>
<p>Thanks for coming by the Continual booth at TMLS 2022!</p>
<p>We've attached your generated image to this email. Enjoy!</p>
<p>Feel like sharing? <a href="{{.TweetLink}}" target="_blank">Click</a> to Tweet your creation!</p>
<p>Note: you will need to download your image and attach it to your tweet.</p>
<span>Best,</span>
<p>the Continual team</p>
`))

const plainBody = `Hey,

Thanks for coming by the Continual booth at TMLS 2022!
We've attached your generated image to this email. Enjoy!

Best,
the Continual team
`

// TweetLink returns the tweet intent URL with the booth share text
func TweetLink() string {
	return "https://twitter.com/intent/tweet?text=" + url.QueryEscape(shareText)
}

func renderBody() (string, error) {
	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, struct{ TweetLink template.URL }{template.URL(TweetLink())}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LogMailer only logs; used when no mail provider is configured
type LogMailer struct{}

func (LogMailer) SendImage(_ context.Context, email, imageURL string) error {
	slog.Info("mail provider not configured, skipping email", "email", email, "image_url", imageURL)
	return nil
}
