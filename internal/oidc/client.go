package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client implementa el lado "relying party" del authorization code flow
// contra los endpoints del discovery document.
type Client struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	keys *KeySet
	http *http.Client
}

var defaultScopes = []string{"openid", "email", "profile"}

func NewClient(keys *KeySet, clientID, clientSecret, redirectURL string, scopes []string, hc *http.Client) *Client {
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		keys:         keys,
		http:         hc,
	}
}

// AuthCodeURL construye la URL de autorización.
func (c *Client) AuthCodeURL(ctx context.Context, state, nonce string) (string, error) {
	disc, err := c.keys.Discovery(ctx)
	if err != nil {
		return "", err
	}
	if disc.AuthorizationEndpoint == "" {
		return "", errors.New("oidc: discovery has no authorization_endpoint")
	}
	u, err := url.Parse(disc.AuthorizationEndpoint)
	if err != nil {
		return "", fmt.Errorf("oidc: authorization_endpoint: %w", err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", c.ClientID)
	q.Set("redirect_uri", c.RedirectURL)
	q.Set("scope", strings.Join(c.Scopes, " "))
	q.Set("state", state)
	q.Set("nonce", nonce)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Exchange canjea el code por tokens. No verifica el id_token: eso es del Verifier.
func (c *Client) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	disc, err := c.keys.Discovery(ctx)
	if err != nil {
		return nil, err
	}
	if disc.TokenEndpoint == "" {
		return nil, errors.New("oidc: discovery has no token_endpoint")
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	form.Set("redirect_uri", c.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, disc.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, defaultMaxBody)
	if resp.StatusCode/100 != 2 {
		var b struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(body).Decode(&b)
		return nil, fmt.Errorf("oidc: token http %d: %s %s", resp.StatusCode, b.Error, b.ErrorDescription)
	}
	var tr TokenResponse
	if err := json.NewDecoder(body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("oidc: token response: %w", err)
	}
	if tr.IDToken == "" {
		return nil, errors.New("oidc: token response without id_token")
	}
	return &tr, nil
}
