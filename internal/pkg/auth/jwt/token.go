package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

// TokenIssuer identifies the issuer of session tokens.
const TokenIssuer = "signalhub"

// ErrMissingSessionID is returned for otherwise valid tokens without a session id.
var ErrMissingSessionID = errors.New("token has no session id")

// IssueSessionToken signs a session token for sessionID valid for ttl.
func IssueSessionToken(sessionID, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &SessionClaims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    TokenIssuer,
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(secretKey))
}

// ParseSessionToken validates tokenString and returns its claims.
func ParseSessionToken(tokenString, secretKey string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	if claims.Issuer != TokenIssuer {
		return nil, errors.New("unexpected token issuer")
	}

	if claims.SessionID == "" {
		return nil, ErrMissingSessionID
	}

	return claims, nil
}
