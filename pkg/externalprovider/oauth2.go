package externalprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// OAuth2Options configures a standards-compliant OAuth2/OIDC provider
type OAuth2Options struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string
	SubjectField string // userinfo field holding the remote subject, default "sub"
	HTTPClient   *http.Client
}

// OAuth2Provider federates any IdP that follows RFC 6749 for the token
// exchange and serves a JSON userinfo endpoint.
type OAuth2Provider struct {
	name         string
	config       *oauth2.Config
	userInfoURL  string
	subjectField string
	httpClient   *http.Client
}

func NewOAuth2Provider(opts OAuth2Options) (*OAuth2Provider, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	if opts.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if opts.AuthURL == "" || opts.TokenURL == "" {
		return nil, fmt.Errorf("authorization and token URLs are required")
	}
	if opts.UserInfoURL == "" {
		return nil, fmt.Errorf("user info URL is required")
	}

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}
	subjectField := opts.SubjectField
	if subjectField == "" {
		subjectField = "sub"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &OAuth2Provider{
		name: opts.Name,
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  opts.AuthURL,
				TokenURL: opts.TokenURL,
			},
		},
		userInfoURL:  opts.UserInfoURL,
		subjectField: subjectField,
		httpClient:   httpClient,
	}, nil
}

func (p *OAuth2Provider) Name() string {
	return p.name
}

func (p *OAuth2Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *OAuth2Provider) Exchange(ctx context.Context, code string) (*RemoteToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < http.StatusInternalServerError {
			return nil, rejected("token endpoint returned %d %s", retrieveErr.Response.StatusCode, retrieveErr.ErrorCode)
		}
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	return &RemoteToken{
		AccessToken: token.AccessToken,
		Expiry:      token.Expiry,
	}, nil
}

func (p *OAuth2Provider) FetchProfile(ctx context.Context, token *RemoteToken) (*RemoteProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	client := p.config.Client(ctx, &oauth2.Token{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		Expiry:      token.Expiry,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("user info request failed with status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, rejected("user info request returned %d", resp.StatusCode)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, malformed("user info", err)
	}

	id := getStringValue(raw, p.subjectField)
	if id == "" {
		return nil, rejected("no %q field in user info", p.subjectField)
	}
	return &RemoteProfile{
		ID:     id,
		Name:   firstStringValue(raw, "name", "nickname", "login"),
		Avatar: firstStringValue(raw, "picture", "avatar_url"),
		Raw:    raw,
	}, nil
}
