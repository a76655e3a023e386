package emailsvc

import (
	"fmt"
	"sync"

	"github.com/trezcool/miradi/core"
)

type transport interface {
	name() string
	deliver(msg core.EmailMessage) error
}

// Service renders messages and hands them to its transport, in the background unless it is synchronous.
type Service struct {
	transport transport
	logger    core.Logger
	sync      bool
	pending   sync.WaitGroup
}

var _ core.EmailService = (*Service)(nil)

func (svc *Service) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.sync {
			svc.send(msg)
			continue
		}
		svc.pending.Add(1)
		go func(msg *core.EmailMessage) {
			defer svc.pending.Done()
			svc.send(msg)
		}(msg)
	}
}

// Wait blocks until every background send is over.
func (svc *Service) Wait() {
	svc.pending.Wait()
}

func (svc *Service) send(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.TemplateName, err), err)
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		svc.logger.Debug(fmt.Sprintf("email %q skipped: no recipient or no content", msg.Subject))
		return
	}
	if err := svc.transport.deliver(*msg); err != nil {
		svc.logger.Error(fmt.Sprintf("sending email %q through %s: %v", msg.Subject, svc.transport.name(), err), err)
	}
}

func subjectPrefix(conf *core.Config) string {
	return "[" + conf.AppName + "] "
}
