package opensky

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Credentials are the OAuth2 client credentials issued by OpenSky.
type Credentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// Configured reports whether both halves of the credential pair are present.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// NewTokenSource returns a caching token source for the credentials, or nil
// when they are not configured, in which case requests go out anonymously.
// Tokens are cached and refreshed shortly before expiry; the source is safe
// for concurrent use. ctx is used for every token request, so it must live
// as long as the process.
func NewTokenSource(ctx context.Context, creds Credentials) oauth2.TokenSource {
	if !creds.Configured() {
		return nil
	}

	tokenURL := creds.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return cfg.TokenSource(ctx)
}
