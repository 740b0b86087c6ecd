package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"advisorgate/internal/ledger"
)

var (
	ErrNotConfigured = errors.New("billing: stripe is not configured")
	ErrBadSignature  = errors.New("billing: webhook signature verification failed")
	ErrBadPayload    = errors.New("billing: malformed webhook payload")
)

// Sync applies subscription state to the ledger.
type Sync struct {
	ledger        *ledger.Ledger
	subs          SubscriptionChecker
	webhookSecret string
	log           zerolog.Logger
}

// NewSync builds a Sync. subs may be nil when no secret key is configured,
// in which case SyncUser returns ErrNotConfigured.
func NewSync(l *ledger.Ledger, subs SubscriptionChecker, webhookSecret string, log zerolog.Logger) *Sync {
	return &Sync{
		ledger:        l,
		subs:          subs,
		webhookSecret: webhookSecret,
		log:           log.With().Str("component", "billing").Logger(),
	}
}

// SyncResult is the premium state after a sync.
type SyncResult struct {
	UserID    string `json:"user_id"`
	Linked    bool   `json:"linked"`
	IsPremium bool   `json:"is_premium"`
}

// SyncUser asks Stripe for the user's subscription and stores the answer.
// Users without a linked customer are reported unchanged.
func (s *Sync) SyncUser(ctx context.Context, userID string) (SyncResult, error) {
	if s.subs == nil {
		return SyncResult{}, ErrNotConfigured
	}
	row, err := s.ledger.Get(ctx, userID)
	if err != nil {
		return SyncResult{}, err
	}
	res := SyncResult{UserID: userID, IsPremium: row.IsPremium}
	if row.StripeCustomerID == nil || *row.StripeCustomerID == "" {
		return res, nil
	}
	res.Linked = true

	active, err := s.subs.HasActiveSubscription(ctx, *row.StripeCustomerID)
	if err != nil {
		return res, fmt.Errorf("list subscriptions: %w", err)
	}
	if active != row.IsPremium {
		if err := s.ledger.SetPremium(ctx, userID, active, ""); err != nil {
			return res, err
		}
		s.log.Info().Str("user_id", userID).Bool("premium", active).Msg("premium status synced")
	}
	res.IsPremium = active
	return res, nil
}

// HandleWebhook verifies and applies one Stripe event. Events that do not
// affect premium status are ignored.
func (s *Sync) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.log.Warn().Err(err).Msg("stripe webhook signature failed")
		return ErrBadSignature
	}
	log := s.log.With().Str("event_id", event.ID).Str("event_type", string(event.Type)).Logger()

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		customerID := ""
		if sess.Customer != nil {
			customerID = sess.Customer.ID
		}
		if sess.ClientReferenceID != "" {
			if err := s.ledger.SetPremium(ctx, sess.ClientReferenceID, true, customerID); err != nil {
				return err
			}
			log.Info().Str("user_id", sess.ClientReferenceID).Msg("checkout completed, premium enabled")
			return nil
		}
		if customerID == "" {
			return fmt.Errorf("%w: session has neither client reference nor customer", ErrBadPayload)
		}
		return s.byCustomer(ctx, log, customerID, true)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return fmt.Errorf("%w: subscription missing customer", ErrBadPayload)
		}
		return s.byCustomer(ctx, log, sub.Customer.ID, Active(sub.Status))
	}
	return nil
}

func (s *Sync) byCustomer(ctx context.Context, log zerolog.Logger, customerID string, premium bool) error {
	userID, found, err := s.ledger.SetPremiumByCustomer(ctx, customerID, premium)
	if err != nil {
		return err
	}
	if !found {
		log.Warn().Str("customer_id", customerID).Msg("no user linked to stripe customer")
		return nil
	}
	log.Info().Str("user_id", userID).Bool("premium", premium).Msg("subscription applied")
	return nil
}
