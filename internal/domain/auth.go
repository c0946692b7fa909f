package domain

// ============================================================
// Auth: dev token bridge
// ============================================================

// TokenRequest is the body for POST /v1/dev/token (DEV_AUTH only).
type TokenRequest struct {
	UserID string `json:"userId"`
}

// TokenResponse carries a signed access token.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
	UserID      string `json:"userId"`
}
