package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Samarth-1003/MockMate-AI/pkg/errorsx"
	"github.com/Samarth-1003/MockMate-AI/pkg/logging"
	"github.com/Samarth-1003/MockMate-AI/pkg/scoring"
)

type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

type Config struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
}

// Notifier delivers the interview result to the candidate over SMS via the
// Twilio REST API. Delivery is best effort; the session result is already
// on screen when this runs.
type Notifier struct {
	cfg    Config
	client messageCreator
	logger *slog.Logger
}

func NewNotifier(cfg Config) *Notifier {
	return &Notifier{
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "sms_notify"),
	}
}

// Enabled reports whether the notifier has everything it needs to send.
func (n *Notifier) Enabled() bool {
	return n.cfg.AccountSID != "" && n.cfg.AuthToken != "" && n.cfg.From != "" && n.cfg.To != ""
}

// SendResult texts the final percentage and narrative.
func (n *Notifier) SendResult(ctx context.Context, sessionID string, res scoring.Result) error {
	_ = ctx
	if !n.Enabled() {
		return errorsx.New(errorsx.ReasonNotifySend, "notifier not configured")
	}
	client := n.client
	if client == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: n.cfg.AccountSID,
			Password: n.cfg.AuthToken,
		})
		client = rest.Api
	}
	body := fmt.Sprintf("Interview complete. Score: %d%%. %s", res.Percentage, res.Narrative)
	params := &api.CreateMessageParams{}
	params.SetTo(n.cfg.To)
	params.SetFrom(n.cfg.From)
	params.SetBody(body)

	resp, err := client.CreateMessage(params)
	if err != nil {
		n.logger.Error("sms send failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonNotifySend)
	}
	if resp == nil || resp.Sid == nil {
		return errorsx.Wrap(errors.New("missing message sid"), errorsx.ReasonNotifySend)
	}
	n.logger.Info("sms sent",
		slog.String("session_id", sessionID),
		slog.String("message_sid", *resp.Sid))
	return nil
}
