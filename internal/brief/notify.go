package brief

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/newsquant/pkg/config"
	"github.com/wonny/newsquant/pkg/httputil"
	"github.com/wonny/newsquant/pkg/logger"
)

// ErrNotifierMisconfigured is returned when required credentials are missing
var ErrNotifierMisconfigured = errors.New("notifier misconfigured")

// telegramMaxText is the Bot API message length limit
const telegramMaxText = 4096

// Notifier delivers a finished brief
type Notifier interface {
	Name() string
	Send(ctx context.Context, subject, body string) error
}

// NotifiersFromConfig returns the notifiers whose credentials are set
func NotifiersFromConfig(cfg config.NotifyConfig, log *logger.Logger) []Notifier {
	var out []Notifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		out = append(out, NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, log))
	}
	if cfg.SMTPHost != "" && cfg.MailTo != "" {
		out = append(out, NewEmailNotifier(cfg))
	}
	return out
}

// TelegramNotifier sends the brief to a chat via the Bot API
type TelegramNotifier struct {
	baseURL  string
	botToken string
	chatID   string
	client   *httputil.Client
}

// NewTelegramNotifier creates a notifier for one chat
func NewTelegramNotifier(botToken, chatID string, log *logger.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		baseURL:  "https://api.telegram.org",
		botToken: botToken,
		chatID:   chatID,
		client:   httputil.New(log.WithComponent("telegram"), 10*time.Second),
	}
}

// Name returns "telegram"
func (n *TelegramNotifier) Name() string {
	return "telegram"
}

// Send posts subject and body as one plain-text message, truncated to the API limit
func (n *TelegramNotifier) Send(ctx context.Context, subject, body string) error {
	if n.botToken == "" || n.chatID == "" {
		return fmt.Errorf("telegram: %w", ErrNotifierMisconfigured)
	}

	text := subject + "\n\n" + body
	if r := []rune(text); len(r) > telegramMaxText {
		text = string(r[:telegramMaxText-1]) + "…"
	}

	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := n.client.DoJSON(req, &resp); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram: %s", resp.Description)
	}
	return nil
}

// EmailNotifier sends the brief over SMTP with STARTTLS when offered
type EmailNotifier struct {
	host string
	port int
	user string
	pass string
	from string
	to   []string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates an SMTP notifier. MailFrom defaults to the SMTP user.
func NewEmailNotifier(cfg config.NotifyConfig) *EmailNotifier {
	from := cfg.MailFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	to := make([]string, 0)
	for _, addr := range strings.Split(cfg.MailTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	return &EmailNotifier{
		host: cfg.SMTPHost,
		port: port,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		from: from,
		to:   to,
		send: smtp.SendMail,
	}
}

// Name returns "email"
func (n *EmailNotifier) Name() string {
	return "email"
}

// Send delivers one plain-text message
func (n *EmailNotifier) Send(ctx context.Context, subject, body string) error {
	if n.host == "" || n.from == "" || len(n.to) == 0 {
		return fmt.Errorf("email: %w", ErrNotifierMisconfigured)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.user != "" {
		auth = smtp.PlainAuth("", n.user, n.pass, n.host)
	}

	addr := net.JoinHostPort(n.host, strconv.Itoa(n.port))
	if err := n.send(addr, auth, n.from, n.to, BuildMessage(n.from, n.to, subject, body)); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

// BuildMessage renders an RFC 5322 plain-text message
func BuildMessage(from string, to []string, subject, body string) []byte {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	sb.WriteString("Subject: " + strings.ReplaceAll(subject, "\n", " ") + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(sb.String())
}
