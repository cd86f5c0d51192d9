package queue // queue renders and delivers notification mail

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/iliyamo/authcore/internal/service"
)

type mailTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]mailTemplate{
	string(service.VariantPasswordReset): {
		subject: "Password reset request",
		body: template.Must(template.New("password-reset").Parse(`Hi {{.username}},

We received a request to reset the password of your account.
Open the link below to choose a new password. It expires in 15 minutes.

{{.link}}

If you did not ask for this, you can ignore this email.
`)),
	},
}

// Mail is a rendered notification.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailer renders notifications and appends them to <outbox>/mail.log.
type Mailer struct {
	outbox        string
	resetLinkBase string

	mu sync.Mutex
}

func NewMailer(outboxDir, resetLinkBase string) *Mailer {
	return &Mailer{outbox: outboxDir, resetLinkBase: strings.TrimRight(resetLinkBase, "/")}
}

// Render fills the template of msg.Variant.
func (m *Mailer) Render(msg NotificationMessage) (Mail, error) {
	tpl, ok := templates[msg.Variant]
	if !ok {
		return Mail{}, fmt.Errorf("unknown notification variant %q", msg.Variant)
	}
	if msg.To == "" {
		return Mail{}, fmt.Errorf("notification has no recipient")
	}
	data := make(map[string]string, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	if tok := data["token"]; tok != "" {
		data["link"] = m.resetLinkBase + "/" + tok
	}

	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, data); err != nil {
		return Mail{}, fmt.Errorf("render %s: %w", msg.Variant, err)
	}
	return Mail{To: msg.To, Subject: tpl.subject, Body: buf.String()}, nil
}

// Deliver renders msg and appends it to the outbox file.
func (m *Mailer) Deliver(msg NotificationMessage) error {
	mail, err := m.Render(msg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.outbox, 0o755); err != nil {
		return fmt.Errorf("mkdir outbox: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(m.outbox, "mail.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer f.Close()

	entry := fmt.Sprintf("[%s] To: %s | Subject: %s\n%s\n",
		time.Now().UTC().Format(time.RFC3339), mail.To, mail.Subject, mail.Body)
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	return nil
}
