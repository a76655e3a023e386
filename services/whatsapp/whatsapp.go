package whatsappsvc

import (
	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
)

// NewGateway returns the gateway of the configured provider.
func NewGateway(conf core.WhatsAppConfig, logger core.Logger) (notification.Gateway, error) {
	switch conf.Provider {
	case "", "console":
		return NewConsoleGateway(logger), nil
	case "twilio":
		return NewTwilioClient(conf)
	default:
		return nil, errors.Errorf("unknown whatsapp provider %q", conf.Provider)
	}
}
