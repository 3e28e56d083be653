// Package token issues and validates traveler session tokens. A session is
// one app launch; the token carries the session ID that scopes interaction
// state and save keys.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"entrypass/internal/platform/middleware"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// Claims represents the JWT claims for session tokens.
type Claims struct {
	SessionID string `json:"session_id"`
	Device    string `json:"device,omitempty"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
}

// NewService builds a token service signing with HS256.
func NewService(signingKey string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     "entrypass",
	}
}

// GenerateSessionToken mints a token for a traveler session.
func (s *Service) GenerateSessionToken(sessionID id.SessionID, device string, expiresIn time.Duration) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: sessionID.String(),
		Device:    device,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	signed, err := t.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign session token")
	}
	return signed, nil
}

// ValidateToken parses and verifies a session token. Implements
// middleware.SessionValidator.
func (s *Service) ValidateToken(tokenString string) (*middleware.SessionClaims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid session token")
	}
	if !parsed.Valid || claims.SessionID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	return &middleware.SessionClaims{SessionID: claims.SessionID, Device: claims.Device}, nil
}
