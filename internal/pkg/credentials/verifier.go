package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/ScreenShow/app/models"
	"github.com/ManuelReschke/ScreenShow/app/repository"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/digest"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/identity"
)

const (
	ReasonAccountNotFound = "account_not_found"
	ReasonSecretMismatch  = "secret_mismatch"
)

// AccountDirectory looks accounts up by email.
type AccountDirectory interface {
	LookupByEmail(ctx context.Context, email string) (*identity.Account, error)
}

// Verification is the outcome of a secret check. The entitlement fields are
// only set when Valid is true.
type Verification struct {
	Valid            bool
	Reason           string
	AccountID        string
	Plan             string
	Status           string
	CurrentPeriodEnd *time.Time
	EffectivePlan    string
}

// Verifier checks email/secret pairs for other services.
type Verifier struct {
	accounts     AccountDirectory
	repo         repository.CredentialRepository
	engine       *digest.Engine
	entitlements EntitlementSource
	// compared when there is nothing real to compare against
	dummyDigest string
}

func NewVerifier(accounts AccountDirectory, repo repository.CredentialRepository, engine *digest.Engine, ent EntitlementSource) *Verifier {
	return &Verifier{
		accounts:     accounts,
		repo:         repo,
		engine:       engine,
		entitlements: ent,
		dummyDigest:  engine.Digest(models.SecretPrefix),
	}
}

// Verify reports whether secret belongs to the account registered under
// email. Unknown accounts and wrong secrets are reported through Reason, not
// as errors; every path performs the same digest work.
func (v *Verifier) Verify(ctx context.Context, email, secret string) (*Verification, error) {
	acc, err := v.accounts.LookupByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			v.engine.Matches(secret, v.dummyDigest)
			return &Verification{Valid: false, Reason: ReasonAccountNotFound}, nil
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	stored, found := v.dummyDigest, false
	cred, err := v.repo.GetByAccountID(ctx, acc.ID)
	switch {
	case err == nil:
		stored, found = cred.Digest, true
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("load credential: %w", err)
	}

	match := v.engine.Matches(secret, stored)
	if !found || !match || !models.HasSecretFormat(secret) {
		return &Verification{Valid: false, Reason: ReasonSecretMismatch}, nil
	}

	ent, err := v.entitlements.Entitlement(ctx, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve entitlement: %w", err)
	}
	return &Verification{
		Valid:            true,
		AccountID:        acc.ID,
		Plan:             ent.Plan,
		Status:           ent.Status,
		CurrentPeriodEnd: ent.CurrentPeriodEnd,
		EffectivePlan:    string(ent.Effective),
	}, nil
}
