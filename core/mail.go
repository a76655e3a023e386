package core

import (
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	"github.com/trezcool/miradi/fs"
)

const emailTemplatesDir = "templates/email"

// emailTemplate pairs the plain text and HTML variants of one template; either may be nil.
type emailTemplate struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

var emailTemplates = struct {
	sync.RWMutex
	byName map[string]emailTemplate
}{}

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // plain text body, used as is

		TemplateName string // file name without extension
		TemplateData interface{}

		// filled by Render
		TextContent string
		HTMLContent string
	}

	// ContextData is what email templates are executed with.
	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func lookupEmailTemplate(name string) (emailTemplate, bool) {
	emailTemplates.RLock()
	defer emailTemplates.RUnlock()
	tmpl, ok := emailTemplates.byName[name]
	return tmpl, ok
}

func execute(tmpl interface {
	Execute(io.Writer, interface{}) error
}, data ContextData) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Render fills TextContent and HTMLContent. BodyStr wins over a text template.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}
	tmpl, ok := lookupEmailTemplate(m.TemplateName)
	if !ok {
		return nil
	}

	data := ContextData{AppName: Conf.AppName, FrontendBaseURL: Conf.FrontendBaseURL, Data: m.TemplateData}
	var err error
	if tmpl.text != nil && m.BodyStr == "" {
		if m.TextContent, err = execute(tmpl.text, data); err != nil {
			return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
		}
	}
	if tmpl.html != nil {
		if m.HTMLContent, err = execute(tmpl.html, data); err != nil {
			return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
		}
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" || m.HTMLContent != "" }

// ParseEmailTemplates loads the embedded email templates.
// Each "<name>.txt" / "<name>.gohtml" is parsed on top of its "_base" layout.
func ParseEmailTemplates(logger Logger) {
	parsed := make(map[string]emailTemplate)
	strict := Conf.Debug || Conf.TestMode

	paths, err := fs.Glob(appfs.FS, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		logger.Error(fmt.Sprintf("listing email templates: %v", err), err)
		return
	}
	for _, p := range paths {
		file := path.Base(p)
		if strings.HasPrefix(file, "_") {
			continue
		}
		ext := path.Ext(file)
		name := strings.TrimSuffix(file, ext)
		tmpl := parsed[name]

		switch ext {
		case ".txt":
			t, err := texttmpl.ParseFS(appfs.FS, path.Join(emailTemplatesDir, "_base.txt"), p)
			if err != nil {
				logger.Error(fmt.Sprintf("parsing email template %s: %v", file, err), err)
				continue
			}
			if strict {
				t.Option("missingkey=error")
			}
			tmpl.text = t
		case ".gohtml":
			t, err := htmltmpl.ParseFS(appfs.FS, path.Join(emailTemplatesDir, "_base.gohtml"), p)
			if err != nil {
				logger.Error(fmt.Sprintf("parsing email template %s: %v", file, err), err)
				continue
			}
			if strict {
				t.Option("missingkey=error")
			}
			tmpl.html = t
		default:
			continue
		}
		parsed[name] = tmpl
	}

	emailTemplates.Lock()
	emailTemplates.byName = parsed
	emailTemplates.Unlock()
}
