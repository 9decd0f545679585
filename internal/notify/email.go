package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"github.com/macthinh22/my-knowledge-app/internal/logger"
)

const (
	defaultSMTPHost = "smtp.gmail.com"
	defaultSMTPPort = 465
	dialTimeout     = 30 * time.Second

	maxCardKeywords = 6
	excerptRunes    = 280
)

// ErrNoRecipient is returned when the notifier has nowhere to send to.
var ErrNoRecipient = errors.New("notify: email recipient is not configured")

// EmailConfig holds SMTP credentials and addressing.
type EmailConfig struct {
	Host      string
	Port      int
	Address   string
	Password  string
	Recipient string
	Subject   string
}

// EmailNotifier sends the review digest over SMTP with implicit TLS.
type EmailNotifier struct {
	cfg EmailConfig
}

// NewEmailNotifier creates a notifier, defaulting to Gmail on port 465.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.Host == "" {
		cfg.Host = defaultSMTPHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultSMTPPort
	}
	if cfg.Subject == "" {
		cfg.Subject = "Your daily knowledge review"
	}
	return &EmailNotifier{cfg: cfg}
}

// SendDigest renders videos as cards and mails them to the recipient.
func (n *EmailNotifier) SendDigest(ctx context.Context, videos []domain.Video) error {
	if n.cfg.Recipient == "" {
		return ErrNoRecipient
	}
	if len(videos) == 0 {
		logger.CtxWarn(ctx, "No videos to send in digest")
		return nil
	}

	body, err := RenderDigest(videos)
	if err != nil {
		return err
	}
	msg := n.buildMessage(len(videos), body)

	if err := n.send(ctx, msg); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	logger.With(logger.Fields{logger.FieldCount: len(videos)}).Info(ctx, "Digest email delivered to %s", n.cfg.Recipient)
	return nil
}

func (n *EmailNotifier) subject(count int) string {
	return fmt.Sprintf("%s - %d video(s) to revisit", n.cfg.Subject, count)
}

func (n *EmailNotifier) buildMessage(count int, htmlBody string) []byte {
	var b bytes.Buffer
	b.WriteString("From: " + n.cfg.Address + "\r\n")
	b.WriteString("To: " + n.cfg.Recipient + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", n.subject(count)) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return b.Bytes()
}

func (n *EmailNotifier) send(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: dialTimeout},
		Config:    &tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if err := client.Auth(smtp.PlainAuth("", n.cfg.Address, n.cfg.Password, n.cfg.Host)); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := client.Mail(n.cfg.Address); err != nil {
		return err
	}
	if err := client.Rcpt(n.cfg.Recipient); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

type digestCard struct {
	Title        string
	URL          string
	ThumbnailURL string
	Channel      string
	Excerpt      string
	Keywords     []string
}

// RenderDigest returns the HTML body for videos.
func RenderDigest(videos []domain.Video) (string, error) {
	cards := make([]digestCard, 0, len(videos))
	for i := range videos {
		cards = append(cards, newDigestCard(&videos[i]))
	}
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, cards); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

func newDigestCard(v *domain.Video) digestCard {
	card := digestCard{
		Title: v.Title,
		URL:   v.YouTubeURL,
	}
	if card.Title == "" {
		card.Title = "Untitled Video"
	}
	if v.ThumbnailURL != nil {
		card.ThumbnailURL = *v.ThumbnailURL
	}
	if v.ChannelName != nil {
		card.Channel = *v.ChannelName
	}
	if v.Explanation != nil {
		card.Excerpt = excerpt(*v.Explanation, excerptRunes)
	}
	card.Keywords = v.KeywordList()
	if len(card.Keywords) > maxCardKeywords {
		card.Keywords = card.Keywords[:maxCardKeywords]
	}
	return card
}

var markdownStripper = strings.NewReplacer("**", "", "__", "", "`", "", "#", "")

// excerpt flattens markdown to one line and cuts it at max runes.
func excerpt(markdown string, max int) string {
	text := strings.Join(strings.Fields(markdownStripper.Replace(markdown)), " ")
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max])) + "…"
}

var digestTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0; padding:0; background-color:#0f172a; font-family:'Segoe UI',Roboto,sans-serif;">
  <div style="max-width:600px; margin:0 auto; padding:32px 16px;">
    <div style="text-align:center; margin-bottom:32px;">
      <h1 style="color:#e2e8f0; font-size:24px; margin:0 0 8px 0;">Knowledge Review</h1>
      <p style="color:#94a3b8; font-size:14px; margin:0;">Time to revisit what you've learned</p>
    </div>
{{- range .}}
    <div style="background:#1e293b; border-radius:12px; margin-bottom:20px; overflow:hidden; border:1px solid #334155;">
      {{- if .ThumbnailURL}}
      <img src="{{.ThumbnailURL}}" alt="{{.Title}}" style="width:100%; border-radius:8px 8px 0 0; display:block;">
      {{- end}}
      <div style="padding:16px 20px;">
        <a href="{{.URL}}" style="color:#e2e8f0; font-size:16px; font-weight:600; text-decoration:none; line-height:1.4;">{{.Title}}</a>
        {{- if .Channel}}
        <p style="color:#64748b; font-size:12px; margin:4px 0 0 0;">{{.Channel}}</p>
        {{- end}}
        {{- if .Excerpt}}
        <p style="color:#cbd5e1; font-size:13px; line-height:1.5; margin:12px 0 0 0;">{{.Excerpt}}</p>
        {{- end}}
        {{- if .Keywords}}
        <div style="margin-top:12px;">
          {{- range .Keywords}}
          <span style="display:inline-block; background:#1e293b; color:#818cf8; font-size:11px; padding:3px 8px; border-radius:12px; margin:2px;">{{.}}</span>
          {{- end}}
        </div>
        {{- end}}
      </div>
    </div>
{{- end}}
    <div style="text-align:center; margin-top:32px; padding-top:24px; border-top:1px solid #1e293b;">
      <p style="color:#64748b; font-size:12px; margin:0;">YouTube Knowledge Extractor - Daily Digest</p>
    </div>
  </div>
</body>
</html>
`))
