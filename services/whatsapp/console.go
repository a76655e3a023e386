package whatsappsvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
)

type Message struct {
	To   string
	Body string
}

// ConsoleGateway logs messages instead of sending them.
type ConsoleGateway struct {
	logger core.Logger
	silent bool

	mu   sync.Mutex
	sent []Message
	fail map[string]bool
}

var _ notification.Gateway = (*ConsoleGateway)(nil)

func NewConsoleGateway(logger core.Logger) *ConsoleGateway {
	return &ConsoleGateway{logger: logger, fail: make(map[string]bool)}
}

// NewConsoleGatewayMock returns a silent gateway recording sent messages.
func NewConsoleGatewayMock(logger core.Logger) *ConsoleGateway {
	gw := NewConsoleGateway(logger)
	gw.silent = true
	return gw
}

func (gw *ConsoleGateway) Name() string { return "console" }

func (gw *ConsoleGateway) Send(_ context.Context, to, body string) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if gw.fail[to] {
		return errors.Errorf("delivery to %s refused", to)
	}
	gw.sent = append(gw.sent, Message{To: to, Body: body})
	if !gw.silent {
		gw.logger.Info(fmt.Sprintf("whatsapp message to %s:\n%s", to, body))
	}
	return nil
}

// FailFor makes every later Send to `to` fail.
func (gw *ConsoleGateway) FailFor(to string) {
	gw.mu.Lock()
	gw.fail[to] = true
	gw.mu.Unlock()
}

func (gw *ConsoleGateway) Sent() []Message {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	sent := make([]Message, len(gw.sent))
	copy(sent, gw.sent)
	return sent
}

func (gw *ConsoleGateway) Reset() {
	gw.mu.Lock()
	gw.sent = nil
	gw.fail = make(map[string]bool)
	gw.mu.Unlock()
}
