package sharepoint

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"datahub/internal/errors"
	"datahub/ports"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	graphScope  = "https://graph.microsoft.com/.default"
	tokenURLFmt = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"

	// tokens are refreshed this long before they expire
	expiryBuffer = 5 * time.Minute
	tokenTimeout = 30 * time.Second
)

// Credentials identify the Azure AD application used to read the workbooks.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// TokenURL overrides the tenant token endpoint.
	TokenURL string
	// HTTPClient calls the token endpoint. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// TokenProvider caches a client-credentials token and refreshes it shortly
// before expiry. Each refresh runs under the caller's context.
type TokenProvider struct {
	cfg    *clientcredentials.Config
	client *http.Client
	now    func() time.Time

	mu  sync.Mutex
	tok *oauth2.Token
}

var _ ports.TokenProvider = (*TokenProvider)(nil)

func NewTokenProvider(creds Credentials) (*TokenProvider, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, errors.ConfigInvalid("SharePoint client id and secret are required")
	}
	tokenURL := creds.TokenURL
	if tokenURL == "" {
		if creds.TenantID == "" {
			return nil, errors.ConfigInvalid("SharePoint tenant id is required")
		}
		tokenURL = fmt.Sprintf(tokenURLFmt, creds.TenantID)
	}
	client := creds.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: tokenTimeout}
	}

	return &TokenProvider{
		cfg: &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{graphScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		client: client,
		now:    time.Now,
	}, nil
}

func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fresh() {
		return p.tok.AccessToken, nil
	}
	tok, err := p.cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, p.client))
	if err != nil {
		return "", errors.AuthenticationError(err)
	}
	p.tok = tok
	return tok.AccessToken, nil
}

// fresh reports whether the cached token outlives the expiry buffer. A token
// without an expiry never goes stale.
func (p *TokenProvider) fresh() bool {
	if p.tok == nil || p.tok.AccessToken == "" {
		return false
	}
	return p.tok.Expiry.IsZero() || p.now().Add(expiryBuffer).Before(p.tok.Expiry)
}

// StaticToken always returns the same bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }
