package notification

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/user"
)

const handleTimeout = 30 * time.Second

type (
	// Gateway sends a text message to a phone number. A nil error means the provider accepted it.
	Gateway interface {
		Name() string
		Send(ctx context.Context, to, body string) error
	}

	// StatusChanged is published once a project status change is committed.
	StatusChanged struct {
		ProjectID    string
		ProjectTitle string
		TeacherID    string
		Status       string
		Comments     string
		ChangedBy    string
		OccurredAt   time.Time
	}

	Publisher interface {
		Publish(evt StatusChanged)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	// Notifier delivers StatusChanged events to the project's teacher.
	Notifier struct {
		users     UserGetter
		gateway   Gateway
		mailSvc   core.EmailService
		logger    core.Logger
		emailCopy bool
	}
)

func NewNotifier(users UserGetter, gateway Gateway, mailSvc core.EmailService, logger core.Logger, emailCopy bool) *Notifier {
	return &Notifier{users: users, gateway: gateway, mailSvc: mailSvc, logger: logger, emailCopy: emailCopy}
}

// Handle sends the status message. Every failure is logged, never returned.
func (n *Notifier) Handle(ctx context.Context, evt StatusChanged) {
	teacher, err := n.users.GetByID(ctx, evt.TeacherID)
	if err != nil {
		n.logger.Error(fmt.Sprintf("loading teacher %s of project %s: %v", evt.TeacherID, evt.ProjectID, err), err)
		return
	}

	body, ok, err := RenderStatusMessage(teacher.Name, evt.ProjectTitle, evt.Status, evt.Comments)
	if err != nil {
		n.logger.Error(fmt.Sprintf("rendering status message for project %s: %v", evt.ProjectID, err), err)
		return
	}
	if !ok {
		n.logger.Debug(fmt.Sprintf("no message for status %q of project %s", evt.Status, evt.ProjectID))
		return
	}

	if teacher.HasPhone() {
		if err := n.gateway.Send(ctx, teacher.PhoneNumber, body); err != nil {
			err = core.NewDispatchError(n.gateway.Name(), err)
			n.logger.Error(fmt.Sprintf("sending status message for project %s: %v", evt.ProjectID, err), err, teacher)
		}
	} else {
		n.logger.Debug(fmt.Sprintf("teacher %s has no phone number, status message not sent", teacher.ID))
	}

	if n.emailCopy && n.mailSvc != nil {
		n.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: teacher.Name, Address: teacher.Email}},
			Subject:      "Estado de tu proyecto",
			TemplateName: "notification",
			TemplateData: map[string]string{"Body": body},
		})
	}
}

// Dispatcher hands StatusChanged events to a pool of workers running the Notifier,
// out of the publishing request.
type Dispatcher struct {
	notifier *Notifier
	logger   core.Logger
	events   chan StatusChanged
	workers  int
	inline   bool

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

var _ Publisher = (*Dispatcher)(nil)

func NewDispatcher(notifier *Notifier, logger core.Logger, workers, buffer int) (*Dispatcher, error) {
	if notifier == nil || logger == nil {
		return nil, errors.New("dispatcher: nil notifier or logger")
	}
	err := vala.BeginValidation().Validate(
		vala.GreaterThan(workers, 0, "workers"),
		vala.GreaterThan(buffer, -1, "buffer"),
	).Check()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		notifier: notifier,
		logger:   logger,
		events:   make(chan StatusChanged, buffer),
		workers:  workers,
	}, nil
}

// NewDispatcherMock returns a Dispatcher handling events synchronously, on Publish.
func NewDispatcherMock(notifier *Notifier, logger core.Logger) *Dispatcher {
	return &Dispatcher{notifier: notifier, logger: logger, inline: true}
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	if d.inline {
		return
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for evt := range d.events {
				d.handle(evt)
			}
		}()
	}
}

func (d *Dispatcher) handle(evt StatusChanged) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	d.notifier.Handle(ctx, evt)
}

// Publish queues the event. When the queue is full the event is handled in its own goroutine.
func (d *Dispatcher) Publish(evt StatusChanged) {
	if d.inline {
		d.handle(evt)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.logger.Warn(fmt.Sprintf("dispatcher stopped, dropping status change of project %s", evt.ProjectID))
		return
	}

	select {
	case d.events <- evt:
	default:
		d.logger.Warn("notification queue is full")
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handle(evt)
		}()
	}
}

// Stop stops accepting events and waits for the queued ones to be handled, or for ctx to be done.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.inline {
		return nil
	}

	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.events)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
