package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ScreenShow/app/models"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/entitlements"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/testutil"
)

func newTestService(t *testing.T) (*Service, *fakeProcessor, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	proc := newFakeProcessor()
	return NewServiceFromDB(db, proc), proc, db
}

func loadSubscription(t *testing.T, db *gorm.DB, accountID string) *models.Subscription {
	t.Helper()
	var sub models.Subscription
	require.NoError(t, db.Where("account_id = ?", accountID).First(&sub).Error)
	return &sub
}

func countSubscriptions(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Subscription{}).Count(&n).Error)
	return n
}

func checkoutEvent(t *testing.T, id string, created time.Time, mode, subID string, metadata map[string]string) *Event {
	obj := map[string]interface{}{
		"id":       "cs_" + id,
		"object":   "checkout.session",
		"mode":     mode,
		"customer": "cus_1",
		"metadata": metadata,
	}
	if subID != "" {
		obj["subscription"] = subID
	} else {
		obj["subscription"] = nil
	}
	return newEvent(t, id, EventCheckoutCompleted, created, obj)
}

func subscriptionEvent(t *testing.T, id, typ string, created time.Time, status string, metadata map[string]string) *Event {
	return newEvent(t, id, typ, created, map[string]interface{}{
		"id":       "sub_1",
		"object":   "subscription",
		"customer": "cus_1",
		"status":   status,
		"metadata": metadata,
		"items": map[string]interface{}{
			"data": []map[string]interface{}{{"current_period_end": created.Add(30 * 24 * time.Hour).Unix()}},
		},
	})
}

func TestHandleEvent_CheckoutSubscription(t *testing.T) {
	svc, proc, db := newTestService(t)
	ctx := context.Background()

	periodEnd := time.Unix(1900000000, 0).UTC()
	proc.subscriptions["sub_1"] = &ProcessorSubscription{ID: "sub_1", Status: "active", CurrentPeriodEnd: &periodEnd}

	ev := checkoutEvent(t, "evt_1", time.Unix(1700000000, 0).UTC(), ModeSubscription, "sub_1",
		map[string]string{MetadataAccountID: "acc-1", MetadataPriceKey: "pro_month"})

	outcome, err := svc.HandleEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	sub := loadSubscription(t, db, "acc-1")
	require.NotNil(t, sub.StripeSubscriptionID)
	assert.Equal(t, "sub_1", *sub.StripeSubscriptionID)
	assert.Equal(t, "pro_month", sub.PlanOr(""))
	assert.Equal(t, "active", sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, periodEnd.Equal(*sub.CurrentPeriodEnd))
	assert.Equal(t, "evt_1", sub.LastEventID)

	ent, err := svc.Entitlement(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, entitlements.PlanProMonth, ent.Effective)
}

func TestHandleEvent_ReplayIsDuplicate(t *testing.T) {
	svc, proc, db := newTestService(t)
	ctx := context.Background()
	proc.subscriptions["sub_1"] = &ProcessorSubscription{ID: "sub_1", Status: "active"}

	ev := checkoutEvent(t, "evt_1", time.Unix(1700000000, 0).UTC(), ModeSubscription, "sub_1",
		map[string]string{MetadataAccountID: "acc-1", MetadataPriceKey: "pro_year"})

	_, err := svc.HandleEvent(ctx, ev)
	require.NoError(t, err)
	first := loadSubscription(t, db, "acc-1")

	outcome, err := svc.HandleEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	second := loadSubscription(t, db, "acc-1")
	assert.Equal(t, int64(1), countSubscriptions(t, db))
	assert.Equal(t, first.PlanOr(""), second.PlanOr(""))
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.LastEventID, second.LastEventID)

	var events int64
	require.NoError(t, db.Model(&models.BillingWebhookEvent{}).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestHandleEvent_CheckoutPaymentLifetime(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()

	ev := checkoutEvent(t, "evt_2", time.Unix(1700000000, 0).UTC(), ModePayment, "",
		map[string]string{MetadataAccountID: "acc-2", MetadataPriceKey: "lifetime"})

	outcome, err := svc.HandleEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	sub := loadSubscription(t, db, "acc-2")
	assert.Nil(t, sub.StripeSubscriptionID)
	assert.Nil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, "lifetime", sub.PlanOr(""))
	assert.Equal(t, models.BillingStatusActive, sub.Status)
}

func TestHandleEvent_MissingAccountIsDropped(t *testing.T) {
	svc, _, db := newTestService(t)

	ev := checkoutEvent(t, "evt_3", time.Unix(1700000000, 0).UTC(), ModePayment, "",
		map[string]string{MetadataPriceKey: "lifetime"})

	outcome, err := svc.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDropped, outcome)
	assert.Equal(t, int64(0), countSubscriptions(t, db))

	var stored models.BillingWebhookEvent
	require.NoError(t, db.Where("provider_event_id = ?", "evt_3").First(&stored).Error)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Equal(t, dropNoAccount, stored.ProcessingError)
}

func TestHandleEvent_DeletedKeepsPlanAndRevokesEntitlement(t *testing.T) {
	svc, proc, db := newTestService(t)
	ctx := context.Background()
	proc.subscriptions["sub_1"] = &ProcessorSubscription{ID: "sub_1", Status: "active"}

	t0 := time.Unix(1700000000, 0).UTC()
	_, err := svc.HandleEvent(ctx, checkoutEvent(t, "evt_1", t0, ModeSubscription, "sub_1",
		map[string]string{MetadataAccountID: "acc-1", MetadataPriceKey: "pro_month"}))
	require.NoError(t, err)

	outcome, err := svc.HandleEvent(ctx, subscriptionEvent(t, "evt_2", EventSubscriptionDeleted, t0.Add(time.Hour),
		"canceled", map[string]string{MetadataAccountID: "acc-1"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	sub := loadSubscription(t, db, "acc-1")
	assert.Equal(t, "canceled", sub.Status)
	assert.Equal(t, "pro_month", sub.PlanOr(""), "plan is kept when the event carries none")
	require.NotNil(t, sub.CurrentPeriodEnd)

	ent, err := svc.Entitlement(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "pro_month", ent.Plan)
	assert.Equal(t, "canceled", ent.Status)
	assert.Equal(t, entitlements.PlanFree, ent.Effective)
}

func TestHandleEvent_UpdatedChangesPlan(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0).UTC()

	_, err := svc.HandleEvent(ctx, subscriptionEvent(t, "evt_1", EventSubscriptionUpdated, t0, "trialing",
		map[string]string{MetadataAccountID: "acc-1", MetadataPriceKey: "pro_month"}))
	require.NoError(t, err)
	_, err = svc.HandleEvent(ctx, subscriptionEvent(t, "evt_2", EventSubscriptionUpdated, t0.Add(time.Minute), "active",
		map[string]string{MetadataAccountID: "acc-1", MetadataPriceKey: "pro_year"}))
	require.NoError(t, err)

	sub := loadSubscription(t, db, "acc-1")
	assert.Equal(t, "pro_year", sub.PlanOr(""))
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "evt_2", sub.LastEventID)
}

func TestHandleEvent_StaleEventSkipped(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0).UTC()

	_, err := svc.HandleEvent(ctx, subscriptionEvent(t, "evt_new", EventSubscriptionDeleted, t0.Add(time.Hour), "canceled",
		map[string]string{MetadataAccountID: "acc-1", MetadataPriceKey: "pro_month"}))
	require.NoError(t, err)

	outcome, err := svc.HandleEvent(ctx, subscriptionEvent(t, "evt_old", EventSubscriptionUpdated, t0, "active",
		map[string]string{MetadataAccountID: "acc-1", MetadataPriceKey: "pro_month"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, outcome)

	sub := loadSubscription(t, db, "acc-1")
	assert.Equal(t, "canceled", sub.Status)
	assert.Equal(t, "evt_new", sub.LastEventID)
}

func TestHandleEvent_SameSecondAppliedInOrder(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0).UTC()

	_, err := svc.HandleEvent(ctx, subscriptionEvent(t, "evt_a", EventSubscriptionUpdated, t0, "active",
		map[string]string{MetadataAccountID: "acc-1", MetadataPriceKey: "pro_month"}))
	require.NoError(t, err)
	outcome, err := svc.HandleEvent(ctx, subscriptionEvent(t, "evt_b", EventSubscriptionUpdated, t0, "past_due",
		map[string]string{MetadataAccountID: "acc-1"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, "past_due", loadSubscription(t, db, "acc-1").Status)
}

func TestHandleEvent_CustomerMappingFallback(t *testing.T) {
	svc, _, db := newTestService(t)
	require.NoError(t, db.Create(&models.CustomerMapping{AccountID: "acc-7", StripeCustomerID: "cus_1"}).Error)

	outcome, err := svc.HandleEvent(context.Background(), subscriptionEvent(t, "evt_1", EventSubscriptionUpdated,
		time.Unix(1700000000, 0).UTC(), "active", map[string]string{MetadataPriceKey: "enterprise_month"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, "enterprise_month", loadSubscription(t, db, "acc-7").PlanOr(""))
}

func TestHandleEvent_IgnoredType(t *testing.T) {
	svc, _, db := newTestService(t)

	outcome, err := svc.HandleEvent(context.Background(), newEvent(t, "evt_9", "invoice.paid",
		time.Unix(1700000000, 0).UTC(), map[string]string{"id": "in_1"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Equal(t, int64(0), countSubscriptions(t, db))
}

func TestHandleEvent_FailedEventIsRetried(t *testing.T) {
	svc, proc, db := newTestService(t)
	ctx := context.Background()
	proc.retrieveErr = upstream("retrieve subscription", errors.New("stripe unavailable"))

	ev := checkoutEvent(t, "evt_1", time.Unix(1700000000, 0).UTC(), ModeSubscription, "sub_1",
		map[string]string{MetadataAccountID: "acc-1", MetadataPriceKey: "pro_month"})

	_, err := svc.HandleEvent(ctx, ev)
	require.Error(t, err)
	var upErr *UpstreamError
	assert.ErrorAs(t, err, &upErr)
	assert.Equal(t, int64(0), countSubscriptions(t, db))

	var stored models.BillingWebhookEvent
	require.NoError(t, db.Where("provider_event_id = ?", "evt_1").First(&stored).Error)
	assert.False(t, stored.Succeeded())

	proc.retrieveErr = nil
	proc.subscriptions["sub_1"] = &ProcessorSubscription{ID: "sub_1", Status: "active"}
	outcome, err := svc.HandleEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, "pro_month", loadSubscription(t, db, "acc-1").PlanOr(""))
}

func TestEntitlement_NoRowIsFree(t *testing.T) {
	svc, _, _ := newTestService(t)

	ent, err := svc.Entitlement(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "free", ent.Plan)
	assert.Equal(t, "active", ent.Status)
	assert.Equal(t, entitlements.PlanFree, ent.Effective)
}

func TestApply_RequiresAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Apply(context.Background(), NormalizedSubscription{Status: "active"})
	assert.Error(t, err)
}
