package emailsvc

import (
	"fmt"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/miradi/core"
)

var (
	// SentMessages records what console services delivered.
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

// ResetSentMessages empties SentMessages.
func ResetSentMessages() {
	mu.Lock()
	SentMessages = make([]core.EmailMessage, 0)
	mu.Unlock()
}

// consoleTransport writes messages as MIME documents to the logger.
type consoleTransport struct {
	from       mail.Address
	subjPrefix string
	logger     core.Logger
	silent     bool
}

// NewConsoleService logs emails instead of sending them.
func NewConsoleService(conf *core.Config, logger core.Logger) *Service {
	return &Service{
		transport: consoleTransport{from: conf.DefaultFromEmail(), subjPrefix: subjectPrefix(conf), logger: logger},
		logger:    logger,
	}
}

// NewConsoleServiceMock returns a silent console service sending synchronously.
func NewConsoleServiceMock(conf *core.Config, logger core.Logger) *Service {
	return &Service{
		transport: consoleTransport{from: conf.DefaultFromEmail(), subjPrefix: subjectPrefix(conf), logger: logger, silent: true},
		logger:    logger,
		sync:      true,
	}
}

func (t consoleTransport) name() string { return "console" }

func (t consoleTransport) deliver(msg core.EmailMessage) error {
	if !t.silent {
		t.logger.Info(t.format(msg))
	}
	mu.Lock()
	SentMessages = append(SentMessages, msg)
	mu.Unlock()
	return nil
}

func (t consoleTransport) format(msg core.EmailMessage) string {
	var b strings.Builder
	header := func(key, value string) {
		if value != "" {
			_, _ = fmt.Fprintf(&b, "%s: %s\r\n", key, value)
		}
	}
	header("From", t.from.String())
	header("MIME-Version", "1.0")
	header("Date", time.Now().Format(time.RFC1123Z))
	header("Subject", t.subjPrefix+msg.Subject)
	header("To", joinAddresses(msg.To))
	header("Cc", joinAddresses(msg.Cc))
	header("Bcc", joinAddresses(msg.Bcc))

	parts := multipart.NewWriter(&b)
	header("Content-Type", "multipart/alternative; boundary="+parts.Boundary())
	b.WriteString("\r\n")
	for _, body := range []struct{ mime, content string }{
		{"text/plain; charset=utf-8", msg.TextContent},
		{"text/html; charset=utf-8", msg.HTMLContent},
	} {
		if body.content == "" {
			continue
		}
		if w, err := parts.CreatePart(textproto.MIMEHeader{"Content-Type": {body.mime}}); err == nil {
			_, _ = fmt.Fprintf(w, "%s\r\n", body.content)
		}
	}
	_ = parts.Close()
	return b.String()
}

func joinAddresses(addrs []mail.Address) string {
	formatted := make([]string, 0, len(addrs))
	for _, a := range addrs {
		formatted = append(formatted, a.String())
	}
	return strings.Join(formatted, ", ")
}
