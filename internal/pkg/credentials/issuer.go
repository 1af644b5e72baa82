package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ScreenShow/app/models"
	"github.com/ManuelReschke/ScreenShow/app/repository"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/digest"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/entitlements"
)

// ErrPlanRequired is returned when a free-tier account asks for a secret.
var ErrPlanRequired = errors.New("a paid plan is required to issue a secret")

// EntitlementSource resolves the current entitlement of an account.
type EntitlementSource interface {
	Entitlement(ctx context.Context, accountID string) (entitlements.Entitlement, error)
}

// IssueResult is returned by Issue. Secret is only set when Created is true
// and is never retrievable again.
type IssueResult struct {
	Created bool
	Secret  string
	Preview string
}

// Issuer creates API secrets for paying accounts.
type Issuer struct {
	repo         repository.CredentialRepository
	engine       *digest.Engine
	entitlements EntitlementSource
	random       io.Reader
}

// NewIssuer wires an issuer. random may be nil to use crypto/rand.
func NewIssuer(repo repository.CredentialRepository, engine *digest.Engine, ent EntitlementSource, random io.Reader) *Issuer {
	return &Issuer{repo: repo, engine: engine, entitlements: ent, random: random}
}

// Issue returns the existing secret preview unless force is set or the
// account has no secret yet, in which case a new secret replaces any old one.
func (i *Issuer) Issue(ctx context.Context, accountID string, force bool) (*IssueResult, error) {
	if accountID == "" {
		return nil, errors.New("account id is required")
	}

	ent, err := i.entitlements.Entitlement(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("resolve entitlement: %w", err)
	}
	if !entitlements.CanIssueSecret(ent.Effective) {
		return nil, ErrPlanRequired
	}

	existing, err := i.repo.GetByAccountID(ctx, accountID)
	switch {
	case err == nil:
		if !force {
			return &IssueResult{Created: false, Preview: existing.Preview()}, nil
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		existing = nil
	default:
		return nil, fmt.Errorf("load credential: %w", err)
	}

	cred := &models.Credential{ID: uuid.NewString(), AccountID: accountID}
	secret, err := cred.IssueSecret(i.random, i.engine.Digest)
	if err != nil {
		return nil, err
	}

	if existing == nil && !force {
		created, err := i.repo.CreateIfAbsent(ctx, cred)
		if err != nil {
			return nil, fmt.Errorf("store credential: %w", err)
		}
		if !created {
			// A concurrent request issued first; its secret stays valid.
			stored, err := i.repo.GetByAccountID(ctx, accountID)
			if err != nil {
				return nil, fmt.Errorf("load credential: %w", err)
			}
			return &IssueResult{Created: false, Preview: stored.Preview()}, nil
		}
	} else {
		if err := i.repo.Upsert(ctx, cred); err != nil {
			return nil, fmt.Errorf("replace credential: %w", err)
		}
	}

	log.Info().Str("account_id", accountID).Bool("rotated", existing != nil).Msg("api secret issued")
	return &IssueResult{Created: true, Secret: secret, Preview: cred.Preview()}, nil
}
