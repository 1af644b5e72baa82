package identity

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// authClient is the subset of *auth.Client used here.
type authClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error)
}

// FirebaseProvider resolves identities through Firebase Authentication.
type FirebaseProvider struct {
	client     authClient
	isNotFound func(error) bool
}

// FirebaseConfig describes how to reach the Firebase project.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// NewFirebaseProvider initializes a Firebase app and its auth client.
func NewFirebaseProvider(ctx context.Context, cfg FirebaseConfig) (*FirebaseProvider, error) {
	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}

	var conf *firebase.Config
	if id := strings.TrimSpace(cfg.ProjectID); id != "" {
		conf = &firebase.Config{ProjectID: id}
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase init: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return newFirebaseProvider(client, auth.IsUserNotFound), nil
}

func newFirebaseProvider(client authClient, isNotFound func(error) bool) *FirebaseProvider {
	return &FirebaseProvider{client: client, isNotFound: isNotFound}
}

func (p *FirebaseProvider) Authenticate(ctx context.Context, token string) (*Account, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	tok, err := p.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if tok == nil || tok.UID == "" {
		return nil, ErrUnauthenticated
	}

	email, _ := tok.Claims["email"].(string)
	return &Account{ID: tok.UID, Email: NormalizeEmail(email)}, nil
}

func (p *FirebaseProvider) LookupByEmail(ctx context.Context, email string) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrAccountNotFound
	}
	rec, err := p.client.GetUserByEmail(ctx, email)
	if err != nil {
		if p.isNotFound != nil && p.isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account by email: %w", err)
	}
	if rec == nil || rec.UserInfo == nil || rec.UID == "" {
		return nil, ErrAccountNotFound
	}
	// Provider lookups are exact; guard against a case-sensitive directory.
	if !strings.EqualFold(rec.Email, email) {
		return nil, ErrAccountNotFound
	}
	return &Account{ID: rec.UID, Email: NormalizeEmail(rec.Email)}, nil
}
