package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"capability-gateway/internal/domain"
)

// IAMのAPIキーグラント種別。
const iamAPIKeyGrantType = "urn:ibm:params:oauth:grant-type:apikey"

// iamTokenSource はAPIキーからIAMベアラートークンを取得するoauth2.TokenSource。
type iamTokenSource struct {
	httpClient *http.Client
	tokenURL   string
	apiKey     string
}

// NewIAMTokenSource はトークンの再利用と期限管理付きのTokenSourceを生成する。
func NewIAMTokenSource(tokenURL, apiKey string, httpClient *http.Client) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &iamTokenSource{
		httpClient: httpClient,
		tokenURL:   tokenURL,
		apiKey:     apiKey,
	})
}

// Token はIAMトークンエンドポイントからアクセストークンを取得する。
func (s *iamTokenSource) Token() (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("grant_type", iamAPIKeyGrantType)
	form.Set("apikey", s.apiKey)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting IAM token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading IAM token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.BackendError{Status: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
		Expiration  int64  `json:"expiration"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding IAM token response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("IAM token response contains no access token")
	}

	expiry := time.Unix(payload.Expiration, 0)
	if payload.Expiration == 0 && payload.ExpiresIn > 0 {
		expiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return &oauth2.Token{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
		Expiry:      expiry,
	}, nil
}
