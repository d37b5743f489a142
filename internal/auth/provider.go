package auth

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/google"
)

// Auth type names accepted by NewProvider.
const (
	TypeNone              = "none"
	TypeBearer            = "bearer"
	TypeClientCredentials = "client_credentials"
	TypeGoogleSA          = "google_sa"
)

// Provider produces the token source used to authenticate MCP requests.
// A nil token source means requests go out without an Authorization header.
type Provider interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// NoAuthProvider provides no credentials.
type NoAuthProvider struct{}

func (p *NoAuthProvider) TokenSource(_ context.Context) (oauth2.TokenSource, error) {
	return nil, nil
}

// BearerTokenProvider provides a static bearer token.
type BearerTokenProvider struct {
	Token string
}

func (p *BearerTokenProvider) TokenSource(_ context.Context) (oauth2.TokenSource, error) {
	if p.Token == "" {
		return nil, nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.Token, TokenType: "Bearer"}), nil
}

// ClientCredentialsProvider obtains tokens with the OAuth2 client_credentials
// grant (RFC 6749 Section 4.4). Tokens are refreshed when they expire.
type ClientCredentialsProvider struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// TokenSource returns a refreshing source. ctx is used for every later
// token fetch and must outlive the source.
func (p *ClientCredentialsProvider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if p.TokenURL == "" {
		return nil, fmt.Errorf("client_credentials: token URL is required")
	}
	if p.ClientID == "" {
		return nil, fmt.Errorf("client_credentials: client ID is required")
	}
	cfg := clientcredentials.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		TokenURL:     p.TokenURL,
		Scopes:       p.Scopes,
	}
	return cfg.TokenSource(ctx), nil
}

// GoogleSAProvider provides Google Service Account authentication
// using JWT signed with a service account key file.
type GoogleSAProvider struct {
	// KeyFile is the path to the Google service account JSON key file.
	KeyFile string
	// Scopes are the OAuth2 scopes to request.
	Scopes []string

	mu          sync.Mutex
	tokenSource oauth2.TokenSource
}

func (p *GoogleSAProvider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokenSource != nil {
		return p.tokenSource, nil
	}

	keyData, err := os.ReadFile(p.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read service account key file %s: %w", p.KeyFile, err)
	}

	scopes := p.Scopes
	if len(scopes) == 0 {
		scopes = []string{"https://www.googleapis.com/auth/cloud-platform"}
	}

	creds, err := google.CredentialsFromJSON(ctx, keyData, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}

	p.tokenSource = creds.TokenSource
	return p.tokenSource, nil
}

// NewProvider creates a Provider from an auth type string and credentials.
// An empty type means bearer when a token is present and none otherwise.
func NewProvider(authType string, cred ServerCredential) (Provider, error) {
	switch authType {
	case "":
		if cred.Token != "" {
			return &BearerTokenProvider{Token: cred.Token}, nil
		}
		return &NoAuthProvider{}, nil
	case TypeNone, "no_auth":
		return &NoAuthProvider{}, nil
	case TypeBearer, "bearer_token":
		return &BearerTokenProvider{Token: cred.Token}, nil
	case TypeClientCredentials, "s2s_oauth2":
		return &ClientCredentialsProvider{
			ClientID:     cred.ClientID,
			ClientSecret: cred.ClientSecret,
			TokenURL:     cred.TokenURL,
			Scopes:       cred.Scopes,
		}, nil
	case TypeGoogleSA, "google_service_account":
		return &GoogleSAProvider{KeyFile: cred.KeyFile, Scopes: cred.Scopes}, nil
	default:
		return nil, fmt.Errorf("unknown auth type: %q", authType)
	}
}
