// Package token issues and validates actor bearer tokens. Authentication is
// deliberately thin here: the kernel's authority model lives in roles and
// rules, not in token claims.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "dealkernel/pkg/domain"
)

// Claims carries the actor identity inside an HS256 token.
type Claims struct {
	ActorID string `json:"actor_id"`
	jwt.RegisteredClaims
}

// Service handles token creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// Issue creates a signed token naming an actor.
func (s *Service) Issue(actorID id.ActorID, expiresIn time.Duration) (string, error) {
	now := time.Now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ActorID: actorID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

// ValidateToken parses and validates a token, returning the actor it names.
// Satisfies middleware.TokenValidator.
func (s *Service) ValidateToken(tokenString string) (id.ActorID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.ActorID{}, fmt.Errorf("token expired")
		}
		return id.ActorID{}, fmt.Errorf("invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return id.ActorID{}, fmt.Errorf("invalid token claims")
	}
	actorID, err := id.ParseActorID(claims.ActorID)
	if err != nil {
		return id.ActorID{}, fmt.Errorf("invalid actor id in token")
	}
	return actorID, nil
}
