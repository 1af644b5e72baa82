package entitlements

import (
	"strings"
	"time"

	"github.com/ManuelReschke/ScreenShow/app/models"
)

type Plan string

const (
	PlanFree            Plan = "free"
	PlanProMonth        Plan = "pro_month"
	PlanProYear         Plan = "pro_year"
	PlanLifetime        Plan = "lifetime"
	PlanEnterpriseMonth Plan = "enterprise_month"
)

// PaidPlans lists every plan key that can be bought through checkout.
var PaidPlans = []Plan{PlanProMonth, PlanProYear, PlanLifetime, PlanEnterpriseMonth}

// ParsePlan normalizes a plan key. Unknown keys map to PlanFree.
func ParsePlan(raw string) (Plan, bool) {
	p := Plan(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range PaidPlans {
		if p == known {
			return p, true
		}
	}
	if p == PlanFree {
		return PlanFree, true
	}
	return PlanFree, false
}

// IsRecurring reports whether the plan is billed as a subscription.
func IsRecurring(p Plan) bool {
	switch p {
	case PlanProMonth, PlanProYear, PlanEnterpriseMonth:
		return true
	default:
		return false
	}
}

// IsEntitlingStatus reports whether a processor status keeps the paid plan.
func IsEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.BillingStatusActive, models.BillingStatusTrialing, models.BillingStatusPastDue:
		return true
	default:
		return false
	}
}

// Entitlement is the plan/status/renewal tuple reported for an account.
type Entitlement struct {
	Plan             string
	Status           string
	CurrentPeriodEnd *time.Time
	// Effective is the plan used for gating.
	Effective Plan
}

// FromSubscription resolves the entitlement of an account from its stored
// subscription row. A nil row is the free tier.
func FromSubscription(sub *models.Subscription) Entitlement {
	if sub == nil {
		return Entitlement{
			Plan:      string(PlanFree),
			Status:    models.BillingStatusActive,
			Effective: PlanFree,
		}
	}

	status := sub.Status
	if status == "" {
		status = models.BillingStatusActive
	}
	out := Entitlement{
		Plan:             sub.PlanOr(string(PlanFree)),
		Status:           status,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
		Effective:        PlanFree,
	}
	if plan, known := ParsePlan(out.Plan); known && IsEntitlingStatus(status) {
		out.Effective = plan
	}
	return out
}

// CanIssueSecret reports whether the plan may hold an API secret.
func CanIssueSecret(p Plan) bool {
	return p != PlanFree && p != ""
}
