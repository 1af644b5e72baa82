package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ScreenShow/app/models"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/entitlements"
)

const dropNoAccount = "no account id in event metadata"

// Service mirrors processor events into the local subscription table and
// answers entitlement queries from it.
type Service struct {
	repo      Repository
	processor Processor
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, processor Processor) *Service {
	return &Service{repo: repo, processor: processor}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, processor Processor) *Service {
	return NewService(NewRepository(db), processor)
}

// Entitlement returns the plan state of accountID. Accounts without a
// subscription row are on the free tier.
func (s *Service) Entitlement(ctx context.Context, accountID string) (entitlements.Entitlement, error) {
	sub, err := s.repo.GetSubscription(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entitlements.FromSubscription(nil), nil
		}
		return entitlements.Entitlement{}, fmt.Errorf("load subscription: %w", err)
	}
	return entitlements.FromSubscription(sub), nil
}

// HandleEvent records a verified event and applies it. Events that were
// already applied successfully are reported as duplicates; a returned error
// means the event should be redelivered.
func (s *Service) HandleEvent(ctx context.Context, ev *Event) (Outcome, error) {
	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: ev.ID,
		EventType:       ev.Type,
		PayloadJSON:     string(ev.Payload),
	})
	if err != nil {
		return "", fmt.Errorf("record webhook event %s: %w", ev.ID, err)
	}
	if !created && stored.Succeeded() {
		log.Debug().Str("event_id", ev.ID).Str("event_type", ev.Type).Msg("duplicate stripe event")
		return OutcomeDuplicate, nil
	}

	outcome, procErr := s.reconcile(ctx, ev)

	note := ""
	switch {
	case procErr != nil:
		note = procErr.Error()
	case outcome == OutcomeDropped:
		note = dropNoAccount
	}
	if err := s.repo.MarkWebhookProcessed(ctx, stored.ID, note); err != nil {
		log.Warn().Err(err).Str("event_id", ev.ID).Msg("failed to mark stripe event processed")
	}

	if procErr != nil {
		return "", procErr
	}
	return outcome, nil
}

func (s *Service) reconcile(ctx context.Context, ev *Event) (Outcome, error) {
	switch ev.Type {
	case EventCheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, ev)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		return s.applySubscriptionChange(ctx, ev)
	default:
		log.Debug().Str("event_id", ev.ID).Str("event_type", ev.Type).Msg("ignoring stripe event")
		return OutcomeIgnored, nil
	}
}

func (s *Service) applyCheckoutCompleted(ctx context.Context, ev *Event) (Outcome, error) {
	session, err := decodeCheckoutSession(ev.Object)
	if err != nil {
		return "", err
	}

	accountID := session.accountID()
	if accountID == "" {
		log.Warn().Str("event_id", ev.ID).Str("session_id", session.ID).Msg("checkout session without account id")
		return OutcomeDropped, nil
	}
	plan := planPtr(session.Metadata[MetadataPriceKey])

	if session.Mode == ModeSubscription && session.Subscription != "" {
		sub, err := s.processor.RetrieveSubscription(ctx, string(session.Subscription))
		if err != nil {
			return "", fmt.Errorf("checkout %s: %w", session.ID, err)
		}
		if plan == nil {
			plan = planPtr(sub.Metadata[MetadataPriceKey])
		}
		return s.Apply(ctx, NormalizedSubscription{
			AccountID:            accountID,
			StripeSubscriptionID: stringPtr(sub.ID),
			Plan:                 plan,
			Status:               sub.Status,
			CurrentPeriodEnd:     sub.CurrentPeriodEnd,
			EventID:              ev.ID,
			EventAt:              ev.Created,
		})
	}

	return s.Apply(ctx, NormalizedSubscription{
		AccountID: accountID,
		Plan:      plan,
		Status:    models.BillingStatusActive,
		EventID:   ev.ID,
		EventAt:   ev.Created,
	})
}

func (s *Service) applySubscriptionChange(ctx context.Context, ev *Event) (Outcome, error) {
	sub, err := decodeSubscription(ev.Object)
	if err != nil {
		return "", err
	}

	accountID := strings.TrimSpace(sub.Metadata[MetadataAccountID])
	if accountID == "" && sub.Customer != "" {
		m, err := s.repo.GetCustomerMappingByStripeID(ctx, string(sub.Customer))
		switch {
		case err == nil:
			accountID = m.AccountID
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return "", fmt.Errorf("resolve customer %s: %w", sub.Customer, err)
		}
	}
	if accountID == "" {
		log.Warn().Str("event_id", ev.ID).Str("subscription_id", sub.ID).Msg("subscription event without account id")
		return OutcomeDropped, nil
	}

	return s.Apply(ctx, NormalizedSubscription{
		AccountID:            accountID,
		StripeSubscriptionID: stringPtr(sub.ID),
		Plan:                 planPtr(sub.Metadata[MetadataPriceKey]),
		Status:               sub.Status,
		CurrentPeriodEnd:     sub.periodEnd(),
		EventID:              ev.ID,
		EventAt:              ev.Created,
	})
}

// Apply upserts the subscription row of in.AccountID unless the row already
// reflects a newer event.
func (s *Service) Apply(ctx context.Context, in NormalizedSubscription) (Outcome, error) {
	if strings.TrimSpace(in.AccountID) == "" {
		return "", errors.New("account id is required")
	}
	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = models.BillingStatusActive
	}

	outcome := OutcomeApplied
	err := s.repo.Transaction(ctx, func(repo Repository) error {
		existing, err := repo.LockSubscription(ctx, in.AccountID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if existing != nil && existing.LastEventAt != nil && !in.EventAt.IsZero() && in.EventAt.Before(*existing.LastEventAt) {
			outcome = OutcomeStale
			return nil
		}

		row := &models.Subscription{
			AccountID:            in.AccountID,
			StripeSubscriptionID: in.StripeSubscriptionID,
			Plan:                 in.Plan,
			Status:               status,
			CurrentPeriodEnd:     in.CurrentPeriodEnd,
			LastEventID:          in.EventID,
		}
		if !in.EventAt.IsZero() {
			at := in.EventAt.UTC()
			row.LastEventAt = &at
		}
		return repo.UpsertSubscription(ctx, row, in.Plan != nil)
	})
	if err != nil {
		log.Error().Err(err).Str("account_id", in.AccountID).Str("event_id", in.EventID).Msg("failed to upsert subscription")
		return "", fmt.Errorf("upsert subscription for %s: %w", in.AccountID, err)
	}

	if outcome == OutcomeStale {
		log.Info().Str("account_id", in.AccountID).Str("event_id", in.EventID).Msg("skipping stale stripe event")
		return outcome, nil
	}
	log.Info().
		Str("account_id", in.AccountID).
		Str("event_id", in.EventID).
		Str("status", status).
		Msg("subscription reconciled")
	return outcome, nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		return false, nil, errors.New("provider event id is required")
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}
