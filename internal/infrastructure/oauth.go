package infrastructure

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/yandex"
)

// yields an OAuth token for outgoing API requests
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// a fixed token taken from configuration
type StaticTokenProvider struct {
	token string
}

func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	return p.token, nil
}

// exchanges a long-lived refresh token for access tokens and
// re-refreshes them as they expire
type OAuthTokenProvider struct {
	source oauth2.TokenSource
}

func NewOAuthTokenProvider(clientID, clientSecret, refreshToken string) *OAuthTokenProvider {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     yandex.Endpoint,
	}
	source := conf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: refreshToken})
	return &OAuthTokenProvider{source: oauth2.ReuseTokenSource(nil, source)}
}

func (p *OAuthTokenProvider) Token(ctx context.Context) (string, error) {
	tok, err := p.source.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
