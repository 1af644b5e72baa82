package billing

import (
	"strings"

	"github.com/ManuelReschke/ScreenShow/internal/pkg/entitlements"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/env"
)

// Environment selects which set of Stripe price ids is used.
type Environment string

const (
	EnvironmentDev  Environment = "dev"
	EnvironmentProd Environment = "prod"
)

// priceEnvStems maps purchasable plans to the stem of their PRICE_* variables.
var priceEnvStems = map[entitlements.Plan]string{
	entitlements.PlanProMonth:        "PRO_MONTH",
	entitlements.PlanProYear:         "PRO_YEAR",
	entitlements.PlanLifetime:        "LIFETIME",
	entitlements.PlanEnterpriseMonth: "ENT_MONTH",
}

// PriceTable holds the Stripe price id per environment and plan.
type PriceTable map[Environment]map[entitlements.Plan]string

// PriceTableFromEnv reads PRICE_<KEY>_DEV and PRICE_<KEY>_PROD for every
// purchasable plan. Missing variables leave an empty id.
func PriceTableFromEnv() PriceTable {
	t := PriceTable{
		EnvironmentDev:  make(map[entitlements.Plan]string, len(priceEnvStems)),
		EnvironmentProd: make(map[entitlements.Plan]string, len(priceEnvStems)),
	}
	for plan, stem := range priceEnvStems {
		t[EnvironmentDev][plan] = strings.TrimSpace(env.GetEnv("PRICE_"+stem+"_DEV", ""))
		t[EnvironmentProd][plan] = strings.TrimSpace(env.GetEnv("PRICE_"+stem+"_PROD", ""))
	}
	return t
}

// Lookup resolves a client supplied price key to its plan and price id.
func (t PriceTable) Lookup(environment Environment, priceKey string) (entitlements.Plan, string, error) {
	plan := entitlements.Plan(strings.ToLower(strings.TrimSpace(priceKey)))
	if _, ok := priceEnvStems[plan]; !ok {
		return "", "", ErrUnknownPriceKey
	}
	id := t[environment][plan]
	if id == "" {
		return plan, "", ErrPriceNotConfigured
	}
	return plan, id, nil
}

// EnvironmentFor picks the price environment from the checkout success URL.
func EnvironmentFor(successURL string) Environment {
	if strings.Contains(successURL, "localhost") {
		return EnvironmentDev
	}
	return EnvironmentProd
}

func checkoutMode(plan entitlements.Plan) string {
	if entitlements.IsRecurring(plan) {
		return ModeSubscription
	}
	return ModePayment
}
