package local

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const tokenIssuer = "workbench"

// accessClaims are the claims carried by access tokens
type accessClaims struct {
	Email     string `json:"email,omitempty"`
	SessionID string `json:"session_id"`
	jwt.StandardClaims
}

func signAccessToken(secret []byte, userID, email, sessionID string, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := accessClaims{
		Email:     email,
		SessionID: sessionID,
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// parseAccessToken verifies signature and expiry
func parseAccessToken(secret []byte, tokenStr string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}
