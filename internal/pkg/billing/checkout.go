package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ScreenShow/app/models"
)

const devBaseURL = "http://localhost:3000"

// DefaultPublicBaseURL is the production base used when PublicBaseURL is unset.
const DefaultPublicBaseURL = "https://screenshow.app"

// CheckoutInput is a request to start a hosted checkout for one account.
type CheckoutInput struct {
	AccountID  string
	Email      string
	PriceKey   string
	SuccessURL string
	CancelURL  string
}

// CheckoutConfig holds the static settings of the checkout initiator.
type CheckoutConfig struct {
	Prices PriceTable
	// PublicBaseURL is used for default redirect URLs in production.
	PublicBaseURL string
}

// CheckoutService opens Stripe checkout sessions.
type CheckoutService struct {
	repo      Repository
	processor Processor
	cfg       CheckoutConfig
}

func NewCheckoutService(repo Repository, processor Processor, cfg CheckoutConfig) *CheckoutService {
	return &CheckoutService{repo: repo, processor: processor, cfg: cfg}
}

// Start validates the price key, makes sure the account has a Stripe
// customer and returns the hosted checkout URL.
func (c *CheckoutService) Start(ctx context.Context, in CheckoutInput) (string, error) {
	if strings.TrimSpace(in.AccountID) == "" {
		return "", errors.New("account id is required")
	}

	environment := EnvironmentFor(in.SuccessURL)
	plan, priceID, err := c.cfg.Prices.Lookup(environment, in.PriceKey)
	if err != nil {
		return "", err
	}

	successURL, cancelURL := c.redirectURLs(environment, in.SuccessURL, in.CancelURL)

	customerID, err := c.ensureCustomer(ctx, in.AccountID, in.Email)
	if err != nil {
		return "", err
	}

	url, err := c.processor.CreateCheckoutSession(ctx, CheckoutSessionParams{
		CustomerID:        customerID,
		PriceID:           priceID,
		Mode:              checkoutMode(plan),
		SuccessURL:        successURL,
		CancelURL:         cancelURL,
		ClientReferenceID: in.AccountID,
		Metadata: map[string]string{
			MetadataAccountID: in.AccountID,
			MetadataPriceKey:  string(plan),
		},
	})
	if err != nil {
		return "", err
	}

	log.Info().
		Str("account_id", in.AccountID).
		Str("price_key", string(plan)).
		Str("environment", string(environment)).
		Msg("checkout session created")
	return url, nil
}

func (c *CheckoutService) redirectURLs(environment Environment, success, cancel string) (string, string) {
	base := devBaseURL
	if environment == EnvironmentProd {
		base = DefaultPublicBaseURL
		if c.cfg.PublicBaseURL != "" {
			base = strings.TrimRight(c.cfg.PublicBaseURL, "/")
		}
	}
	if success == "" {
		success = base + "/dashboard"
	}
	if cancel == "" {
		cancel = base + "/pricing"
	}
	return success, cancel
}

// ensureCustomer returns the Stripe customer of accountID, creating it on
// first use. Concurrent callers may each create a Stripe customer, but only
// one mapping is stored and all of them return it.
func (c *CheckoutService) ensureCustomer(ctx context.Context, accountID, email string) (string, error) {
	m, err := c.repo.GetCustomerMapping(ctx, accountID)
	if err == nil {
		return m.StripeCustomerID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("load customer mapping: %w", err)
	}

	customerID, err := c.processor.CreateCustomer(ctx, accountID, email)
	if err != nil {
		return "", err
	}

	created, err := c.repo.CreateCustomerMappingIfNotExists(ctx, &models.CustomerMapping{
		AccountID:        accountID,
		StripeCustomerID: customerID,
	})
	if err != nil {
		return "", fmt.Errorf("store customer mapping: %w", err)
	}
	if created {
		return customerID, nil
	}

	m, err = c.repo.GetCustomerMapping(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("load customer mapping: %w", err)
	}
	log.Warn().
		Str("account_id", accountID).
		Str("orphan_customer_id", customerID).
		Msg("customer mapping created concurrently")
	return m.StripeCustomerID, nil
}
