// services/auth_service_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// AuthServiceClient validates end-user access tokens against the auth service.
// The SSE endpoint needs it because browsers' EventSource cannot send the
// gateway headers.
type AuthServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
	log     *zap.Logger
}

type ValidateResponse struct {
	UserID                  string   `json:"user_id"`
	DeviceID                string   `json:"device_id"`
	OTPNotRequiredForDevice bool     `json:"otp_not_required_for_device"`
	Roles                   []string `json:"roles"`
}

func NewAuthServiceClient(baseURL, token string, client *http.Client, log *zap.Logger) *AuthServiceClient {
	return &AuthServiceClient{BaseURL: baseURL, Token: token, Client: client, log: log}
}

// ValidateToken calls /auth/validate on the auth service.
func (c *AuthServiceClient) ValidateToken(ctx context.Context, accessToken, deviceID string) (*ValidateResponse, error) {
	jsonData, err := json.Marshal(map[string]string{
		"access_token": accessToken,
		"device_id":    deviceID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/auth/validate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token) // service → auth service token

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("[AUTH] /auth/validate rejected token",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncateRunes(string(body), 200)),
		)
		return nil, fmt.Errorf("%w: auth validation failed with status %d", ErrNotAuthenticated, resp.StatusCode)
	}

	var out ValidateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out.UserID == "" {
		return nil, fmt.Errorf("%w: auth service returned no user", ErrNotAuthenticated)
	}
	return &out, nil
}
