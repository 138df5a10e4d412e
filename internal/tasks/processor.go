package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"natours/api/internal/queue"
	"natours/api/internal/service"
)

// Sender delivers a reset message to the account holder.
type Sender interface {
	SendReset(ctx context.Context, d service.ResetDelivery, resetURL string) error
}

// Processor turns reset stream entries into messages.
type Processor struct {
	sender  Sender
	urlBase string
	logger  zerolog.Logger
	now     func() time.Time
}

func NewProcessor(sender Sender, urlBase string, logger zerolog.Logger) *Processor {
	return &Processor{
		sender:  sender,
		urlBase: strings.TrimSuffix(urlBase, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	d, err := decodeDelivery(msg.Values)
	if err != nil {
		// A malformed entry never becomes valid; drop it.
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("discard malformed delivery")
		return nil
	}
	if !d.ExpiresAt.IsZero() && !p.now().Before(d.ExpiresAt) {
		p.logger.Info().Str("message_id", msg.ID).Msg("discard expired reset delivery")
		return nil
	}
	if err := p.sender.SendReset(ctx, d, p.urlBase+"/"+d.Token); err != nil {
		return fmt.Errorf("send reset to %s: %w", d.Recipient, err)
	}
	return nil
}

func decodeDelivery(values map[string]any) (service.ResetDelivery, error) {
	raw, ok := values[queue.PayloadField].(string)
	if !ok {
		return service.ResetDelivery{}, fmt.Errorf("missing %q field", queue.PayloadField)
	}
	var d service.ResetDelivery
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return service.ResetDelivery{}, fmt.Errorf("decode payload: %w", err)
	}
	if d.Recipient == "" || d.Token == "" {
		return service.ResetDelivery{}, fmt.Errorf("incomplete delivery")
	}
	return d, nil
}

// LogSender writes reset messages to the log instead of mailing them.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendReset(_ context.Context, d service.ResetDelivery, resetURL string) error {
	s.logger.Info().
		Str("to", d.Recipient).
		Str("name", d.Name).
		Time("expires_at", d.ExpiresAt).
		Str("reset_url", resetURL).
		Msg("password reset message")
	return nil
}

// DirectNotifier sends reset messages in-process, for deployments without
// a redis stream.
type DirectNotifier struct {
	sender  Sender
	urlBase string
}

func NewDirectNotifier(sender Sender, urlBase string) *DirectNotifier {
	return &DirectNotifier{sender: sender, urlBase: strings.TrimSuffix(urlBase, "/")}
}

func (n *DirectNotifier) NotifyReset(ctx context.Context, d service.ResetDelivery) error {
	return n.sender.SendReset(ctx, d, n.urlBase+"/"+d.Token)
}
