package billz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	// refreshLead is how long before the recorded expiry a stored token is
	// treated as stale.
	refreshLead = 24 * time.Hour

	// tokenLifetime is the expiry window recorded after a successful login.
	tokenLifetime = 15 * 24 * time.Hour
)

// Credential is the stored integration credential. Token fields are encrypted
// at rest.
type Credential struct {
	SecretToken  string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Active       bool
}

// CredentialStore persists the integration credential between runs.
type CredentialStore interface {
	Credential(ctx context.Context) (*Credential, error)
	SaveTokens(ctx context.Context, accessToken, refreshToken string, expiresAt time.Time) error
}

type loginRequest struct {
	SecretToken string `json:"secret_token"`
}

type loginResponse struct {
	Data struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"data"`
}

// TokenSource supplies bearer headers for the commerce backend. It logs in
// with the stored secret token on first use and refreshes proactively once a
// token is within refreshLead of its recorded expiry. Safe for concurrent use;
// concurrent callers share a single login.
type TokenSource struct {
	store   CredentialStore
	cipher  *Cipher
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewTokenSource creates a token source backed by the given credential store.
func NewTokenSource(store CredentialStore, cipher *Cipher, baseURL string, logger *slog.Logger) *TokenSource {
	return &TokenSource{
		store:   store,
		cipher:  cipher,
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// AuthHeaders returns headers carrying a valid bearer token, refreshing it
// first if needed.
func (s *TokenSource) AuthHeaders(ctx context.Context) (http.Header, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	return headers, nil
}

func (s *TokenSource) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.store.Credential(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}

	if !cred.Active {
		return "", errors.New("commerce integration is not active")
	}

	if cred.AccessToken != "" && time.Now().Before(cred.ExpiresAt.Add(-refreshLead)) {
		return s.cipher.Decrypt(cred.AccessToken)
	}

	if cred.AccessToken == "" {
		s.logger.Info("No stored access token, logging in")
	} else {
		s.logger.Info("Stored access token stale, refreshing",
			slog.Time("expires_at", cred.ExpiresAt),
		)
	}

	return s.login(ctx, cred)
}

// login exchanges the stored secret token for a fresh access token and
// persists the result encrypted.
func (s *TokenSource) login(ctx context.Context, cred *Credential) (string, error) {
	secret, err := s.cipher.Decrypt(cred.SecretToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret token: %w", err)
	}

	payload, err := json.Marshal(loginRequest{SecretToken: secret})
	if err != nil {
		return "", fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/auth/login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read login response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var login loginResponse
	if err := json.Unmarshal(body, &login); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}

	if login.Data.AccessToken == "" {
		return "", errors.New("no access token in login response")
	}

	encryptedAccess, err := s.cipher.Encrypt(login.Data.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt access token: %w", err)
	}

	var encryptedRefresh string
	if login.Data.RefreshToken != "" {
		encryptedRefresh, err = s.cipher.Encrypt(login.Data.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}

	expiresAt := time.Now().Add(tokenLifetime)
	if err := s.store.SaveTokens(ctx, encryptedAccess, encryptedRefresh, expiresAt); err != nil {
		return "", fmt.Errorf("failed to persist tokens: %w", err)
	}

	s.logger.Info("Logged into commerce backend",
		slog.Time("expires_at", expiresAt),
	)

	return login.Data.AccessToken, nil
}
