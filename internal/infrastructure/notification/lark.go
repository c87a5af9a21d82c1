package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// ErrNoRecipients is returned when a message has nobody to go to
var ErrNoRecipients = errors.New("no recipients configured")

// LarkNotifierConfig configures Lark delivery
type LarkNotifierConfig struct {
	// Recipients maps a role to the Lark receiver ids acting for it
	Recipients map[workflow.Role][]string
	// TerminalRecipients are told when a document reaches a terminal state
	TerminalRecipients []string

	MaxAttempts      int
	InitialDelay     time.Duration
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// DefaultLarkNotifierConfig returns delivery defaults with no recipients
func DefaultLarkNotifierConfig() LarkNotifierConfig {
	return LarkNotifierConfig{
		MaxAttempts:      3,
		InitialDelay:     500 * time.Millisecond,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// LarkNotifier messages the people who may act next on a document
type LarkNotifier struct {
	sender  port.LarkMessageSender
	config  LarkNotifierConfig
	retrier retry.Retry[struct{}]
	breaker circuitbreaker.CircuitBreaker[struct{}]
	logger  *zap.Logger
}

// NewLarkNotifier creates a Lark notifier
func NewLarkNotifier(sender port.LarkMessageSender, config LarkNotifierConfig, logger *zap.Logger) *LarkNotifier {
	defaults := DefaultLarkNotifierConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = defaults.InitialDelay
	}
	if config.BreakerThreshold <= 0 {
		config.BreakerThreshold = defaults.BreakerThreshold
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = defaults.BreakerTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	threshold := uint32(config.BreakerThreshold) // #nosec G115 -- positive, checked above

	return &LarkNotifier{
		sender: sender,
		config: config,
		retrier: retry.New[struct{}](retry.Config{
			MaxAttempts:   config.MaxAttempts,
			InitialDelay:  config.InitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
		}),
		breaker: circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    config.BreakerTimeout,
			Timeout:     config.BreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		}),
		logger: logger,
	}
}

// Register subscribes the notifier to transition and terminal events
func (n *LarkNotifier) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeTransitionApplied, "lark-next-actors", n.HandleTransition)
	d.SubscribeNamed(event.TypeDocumentTerminal, "lark-terminal", n.HandleTerminal)
}

// HandleTransition notifies the receivers of every role permitted to act from the new state
func (n *LarkNotifier) HandleTransition(ctx context.Context, evt *event.Event) error {
	roles := evt.GetPayloadStrings(event.KeyNextRoles)
	if len(roles) == 0 {
		return nil
	}

	var recipients []string
	for _, r := range roles {
		recipients = append(recipients, n.config.Recipients[workflow.Role(r)]...)
	}
	recipients = dedupe(recipients)
	if len(recipients) == 0 {
		n.logger.Debug("No Lark recipients for next roles",
			zap.String("document_id", evt.DocumentID),
			zap.Strings("next_roles", roles))
		return nil
	}

	return n.deliver(ctx, evt, recipients, FormatTransitionMessage(evt))
}

// HandleTerminal notifies the terminal recipients that a document is finished
func (n *LarkNotifier) HandleTerminal(ctx context.Context, evt *event.Event) error {
	recipients := dedupe(n.config.TerminalRecipients)
	if len(recipients) == 0 {
		return nil
	}
	return n.deliver(ctx, evt, recipients, FormatTerminalMessage(evt))
}

func (n *LarkNotifier) deliver(ctx context.Context, evt *event.Event, recipients []string, content string) error {
	var errs []error
	for _, receiveID := range recipients {
		_, err := n.breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
			return n.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, n.sender.SendMessage(ctx, receiveID, content)
			})
		})
		if err != nil {
			n.logger.Error("Failed to deliver Lark notification",
				zap.String("event_id", evt.ID),
				zap.String("document_type", evt.DocumentType),
				zap.String("document_id", evt.DocumentID),
				zap.String("receive_id", receiveID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("notify %s: %w", receiveID, err))
		}
	}
	return errors.Join(errs...)
}

// FormatTransitionMessage renders the text sent for a committed transition
func FormatTransitionMessage(evt *event.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s moved from %s to %s by %s (%s).",
		evt.DocumentType, evt.DocumentID,
		evt.GetPayloadString(event.KeyFromState),
		evt.GetPayloadString(event.KeyToState),
		evt.GetPayloadString(event.KeyActorID),
		evt.GetPayloadString(event.KeyActorRole))
	if roles := evt.GetPayloadStrings(event.KeyNextRoles); len(roles) > 0 {
		fmt.Fprintf(&b, " Awaiting action from: %s.", strings.Join(roles, ", "))
	}
	return b.String()
}

// FormatTerminalMessage renders the text sent when a document reaches a terminal state
func FormatTerminalMessage(evt *event.Event) string {
	return fmt.Sprintf("%s %s is now %s. No further transitions are possible.",
		evt.DocumentType, evt.DocumentID, evt.GetPayloadString(event.KeyToState))
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
