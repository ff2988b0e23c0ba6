// internal/common/auth/keycloak.go
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"scholarship-workers/internal/common/errors"
)

// KeycloakClient talks to the Keycloak admin and token endpoints with a client-credentials service account.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// User represents a user in Keycloak.
type User struct {
	ID            string `json:"id,omitempty"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Username      string `json:"username"`
	Enabled       bool   `json:"enabled"`
	EmailVerified bool   `json:"emailVerified"`
}

// RealmRole is the representation the role-mapping endpoint expects.
type RealmRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TokenResponse holds the response from Keycloak's token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// TokenInfo holds the fields of the introspection response this service reads.
type TokenInfo struct {
	Active      bool   `json:"active"`
	Username    string `json:"username,omitempty"`
	Exp         int64  `json:"exp,omitempty"`
	Sub         string `json:"sub,omitempty"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// serviceToken returns a cached client-credentials token, fetching a new one when expired.
func (k *KeycloakClient) serviceToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && k.tokenExpiry.After(time.Now()) {
		return k.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return "", errors.NewExternalServiceError("keycloak", fmt.Errorf("token request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", k.statusError(resp.StatusCode, "token request", body)
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	k.accessToken = tokenResp.AccessToken
	// refresh a little early so a token never expires mid-request
	k.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - 10*time.Second)

	return k.accessToken, nil
}

// adminRequest performs an authenticated admin API call and decodes a JSON response into out when non-nil.
func (k *KeycloakClient) adminRequest(ctx context.Context, method, path string, payload, out interface{}, expected int) error {
	token, err := k.serviceToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return errors.NewInternalError(fmt.Errorf("encode keycloak payload: %w", err))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, k.baseURL+path, body)
	if err != nil {
		return errors.NewInternalError(fmt.Errorf("build keycloak request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return errors.NewExternalServiceError("keycloak", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != expected {
		raw, _ := io.ReadAll(resp.Body)
		return k.statusError(resp.StatusCode, method+" "+path, raw)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.NewExternalServiceError("keycloak", fmt.Errorf("decode %s: %w", path, err))
		}
	}
	return nil
}

// GetUser retrieves a user by their unique ID.
func (k *KeycloakClient) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	path := fmt.Sprintf("/admin/realms/%s/users/%s", k.realm, url.PathEscape(userID))
	if err := k.adminRequest(ctx, http.MethodGet, path, nil, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// AssignRealmRole adds a realm role to the user's role mappings. Keycloak treats a repeated mapping as a no-op.
func (k *KeycloakClient) AssignRealmRole(ctx context.Context, userID, roleName string) error {
	var role RealmRole
	rolePath := fmt.Sprintf("/admin/realms/%s/roles/%s", k.realm, url.PathEscape(roleName))
	if err := k.adminRequest(ctx, http.MethodGet, rolePath, nil, &role, http.StatusOK); err != nil {
		return err
	}

	mappingPath := fmt.Sprintf("/admin/realms/%s/users/%s/role-mappings/realm", k.realm, url.PathEscape(userID))
	return k.adminRequest(ctx, http.MethodPost, mappingPath, []RealmRole{role}, nil, http.StatusNoContent)
}

// ValidateToken checks if an access token is valid and active.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	introspectURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, introspectURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("build introspection request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewExternalServiceError("keycloak", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, k.statusError(resp.StatusCode, "token introspection", raw)
	}

	var tokenInfo TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&tokenInfo); err != nil {
		return nil, errors.NewExternalServiceError("keycloak", fmt.Errorf("decode introspection: %w", err))
	}

	if !tokenInfo.Active {
		return nil, errors.NewAuthenticationError("access token is expired, revoked or invalid")
	}

	return &tokenInfo, nil
}

func (k *KeycloakClient) statusError(status int, operation string, body []byte) error {
	detail := fmt.Errorf("%s: status %d: %s", operation, status, strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.NewAuthenticationError(detail.Error())
	case status == http.StatusNotFound:
		return errors.NewResourceNotFoundError("keycloak", operation)
	case k.isTransientHTTPError(status):
		return errors.NewExternalServiceError("keycloak", detail)
	default:
		stdErr := errors.NewExternalServiceError("keycloak", detail)
		stdErr.Retryable = false
		return stdErr
	}
}

func (k *KeycloakClient) isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
