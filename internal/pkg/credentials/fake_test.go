package credentials

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ScreenShow/app/models"
	"github.com/ManuelReschke/ScreenShow/app/repository"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/digest"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/entitlements"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/identity"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/testutil"
)

type fakeEntitlements map[string]entitlements.Entitlement

func (f fakeEntitlements) Entitlement(_ context.Context, accountID string) (entitlements.Entitlement, error) {
	if e, ok := f[accountID]; ok {
		return e, nil
	}
	return entitlements.FromSubscription(nil), nil
}

type fakeDirectory map[string]string

func (f fakeDirectory) LookupByEmail(_ context.Context, email string) (*identity.Account, error) {
	for id, e := range f {
		if strings.EqualFold(e, email) {
			return &identity.Account{ID: id, Email: e}, nil
		}
	}
	return nil, identity.ErrAccountNotFound
}

func paid(plan entitlements.Plan) entitlements.Entitlement {
	return entitlements.Entitlement{Plan: string(plan), Status: "active", Effective: plan}
}

type fixture struct {
	db       *gorm.DB
	repo     repository.CredentialRepository
	engine   *digest.Engine
	ent      fakeEntitlements
	issuer   *Issuer
	verifier *Verifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine, err := digest.New("test-pepper")
	require.NoError(t, err)

	f := &fixture{
		db:     testutil.NewDB(t),
		engine: engine,
		ent: fakeEntitlements{
			"acc-pro":  paid(entitlements.PlanProMonth),
			"acc-life": paid(entitlements.PlanLifetime),
		},
	}
	dir := fakeDirectory{
		"acc-pro":  "pro@example.com",
		"acc-life": "life@example.com",
		"acc-none": "none@example.com",
	}
	f.repo = repository.NewCredentialRepository(f.db)
	f.issuer = NewIssuer(f.repo, engine, f.ent, nil)
	f.verifier = NewVerifier(dir, f.repo, engine, f.ent)
	return f
}

func (f *fixture) countCredentials(t *testing.T, accountID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Credential{}).Where("account_id = ?", accountID).Count(&n).Error)
	return n
}
