package emailsvc

import (
	"net/http"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/miradi/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
	sendgridAttempts = 3
)

var sendgridBackoff = time.Second // mockable

// sendgridTransport posts messages to the SendGrid v3 API.
type sendgridTransport struct {
	apiKey     string
	host       string
	from       *sgmail.Email
	subjPrefix string
	call       func(req rest.Request) (*rest.Response, error)
}

func NewSendgridService(conf *core.Config, logger core.Logger) *Service {
	from := conf.DefaultFromEmail()
	return &Service{
		transport: sendgridTransport{
			apiKey:     conf.SendgridApiKey,
			host:       sendgridHost,
			from:       sgmail.NewEmail(from.Name, from.Address),
			subjPrefix: subjectPrefix(conf),
			call:       sendgrid.API,
		},
		logger: logger,
	}
}

func (t sendgridTransport) name() string { return "sendgrid" }

// deliver retries throttled and server-side failures.
func (t sendgridTransport) deliver(msg core.EmailMessage) error {
	req := sendgrid.GetRequest(t.apiKey, sendgridEndpoint, t.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(t.build(msg))

	var lastErr error
	for attempt := 1; attempt <= sendgridAttempts; attempt++ {
		res, err := t.call(req)
		switch {
		case err != nil:
			lastErr = err
		case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError:
			lastErr = errors.Errorf("status %d: %s", res.StatusCode, res.Body)
		case res.StatusCode >= http.StatusBadRequest:
			return errors.Errorf("status %d: %s", res.StatusCode, res.Body)
		default:
			return nil
		}
		if attempt < sendgridAttempts {
			time.Sleep(time.Duration(attempt) * sendgridBackoff)
		}
	}
	return errors.Wrapf(lastErr, "giving up after %d attempts", sendgridAttempts)
}

func (t sendgridTransport) build(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = t.subjPrefix + msg.Subject
	p.AddTos(sgEmails(msg.To)...)
	p.AddCCs(sgEmails(msg.Cc)...)
	p.AddBCCs(sgEmails(msg.Bcc)...)

	m := sgmail.NewV3Mail()
	m.SetFrom(t.from)
	m.AddPersonalizations(p)
	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}
	return m
}

func sgEmails(addrs []mail.Address) []*sgmail.Email {
	emails := make([]*sgmail.Email, 0, len(addrs))
	for _, a := range addrs {
		emails = append(emails, sgmail.NewEmail(a.Name, a.Address))
	}
	return emails
}
