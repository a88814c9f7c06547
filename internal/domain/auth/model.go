package auth

import "time"

// Credentials is the login form.
type Credentials struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// Token is an issued catalog API access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}
