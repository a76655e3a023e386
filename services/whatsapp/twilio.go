package whatsappsvc

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
)

const twilioAPIVersion = "2010-04-01"

// TwilioClient sends WhatsApp messages through the Twilio Messages API.
type TwilioClient struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	client     *rest.Client
}

var _ notification.Gateway = (*TwilioClient)(nil)

func NewTwilioClient(conf core.WhatsAppConfig) (*TwilioClient, error) {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(conf.TwilioAccountSID, "TWILIO_ACCOUNT_SID"),
		vala.StringNotEmpty(conf.TwilioAuthToken, "TWILIO_AUTH_TOKEN"),
		vala.StringNotEmpty(conf.TwilioNumber, "TWILIO_WHATSAPP_NUMBER"),
	).Check()
	if err != nil {
		return nil, errors.Wrap(err, "twilio config")
	}

	baseURL := conf.TwilioBaseURL
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &TwilioClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: conf.TwilioAccountSID,
		authToken:  conf.TwilioAuthToken,
		from:       conf.TwilioNumber,
		client:     rest.DefaultClient,
	}, nil
}

func (c *TwilioClient) Name() string { return "twilio" }

func (c *TwilioClient) Send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("From", whatsappAddr(c.from))
	form.Set("To", whatsappAddr(to))
	form.Set("Body", body)

	credentials := base64.StdEncoding.EncodeToString([]byte(c.accountSID + ":" + c.authToken))
	req := rest.Request{
		Method:  rest.Post,
		BaseURL: fmt.Sprintf("%s/%s/Accounts/%s/Messages.json", c.baseURL, twilioAPIVersion, c.accountSID),
		Headers: map[string]string{
			"Authorization": "Basic " + credentials,
			"Content-Type":  "application/x-www-form-urlencoded",
		},
		Body: []byte(form.Encode()),
	}

	res, err := c.client.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, "twilio request")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("twilio status: %d - body: %s", res.StatusCode, res.Body)
	}
	return nil
}

func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
