package emergency

import (
	"context"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/recordvault/access-api/internal/config"
	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/pkg/errors"
)

// Service issues and verifies stateless emergency tokens. Tokens are signed,
// not stored: issuance is O(1), survives restarts, and individual tokens
// cannot be revoked before expiry. The kill switch is key rotation, which
// invalidates every outstanding token at once.
type Service struct {
	cfg config.TokenConfig
	now func() time.Time
}

func NewService(cfg config.TokenConfig) *Service {
	return &Service{
		cfg: cfg,
		now: time.Now,
	}
}

type tokenClaims struct {
	jwt.RegisteredClaims
}

// Issue mints a token scoped to the owner's emergency-visible records.
func (s *Service) Issue(ctx context.Context, ownerID uuid.UUID, ttl time.Duration) (*model.EmergencyToken, error) {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	if s.cfg.MaxTTL > 0 && ttl > s.cfg.MaxTTL {
		return nil, errors.BadRequest(fmt.Sprintf("ttl exceeds maximum of %s", s.cfg.MaxTTL), nil)
	}

	key, ok := s.cfg.Keys[s.cfg.ActiveKeyID]
	if !ok {
		return nil, errors.Internal(fmt.Errorf("active signing key %q not configured", s.cfg.ActiveKeyID))
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(ttl)

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.cfg.ActiveKeyID

	signed, err := token.SignedString([]byte(key))
	if err != nil {
		return nil, errors.Internal(err)
	}

	return &model.EmergencyToken{
		Token:     signed,
		OwnerID:   ownerID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks signature and expiry and returns the owner the token is
// scoped to. Expired and Invalid both surface to callers as a plain denial;
// they stay distinct here so the audit trail can tell them apart.
func (s *Service) Verify(ctx context.Context, tokenString string) (uuid.UUID, error) {
	var claims tokenClaims

	token, err := jwt.ParseWithClaims(tokenString, &claims, s.lookupKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, errors.Expired("emergency token expired")
		}
		return uuid.Nil, errors.Invalid("emergency token signature did not verify", err)
	}
	if !token.Valid {
		return uuid.Nil, errors.Invalid("emergency token is not valid", nil)
	}

	ownerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.Invalid("emergency token carries a malformed owner id", err)
	}
	return ownerID, nil
}

func (s *Service) lookupKey(token *jwt.Token) (interface{}, error) {
	kid, _ := token.Header["kid"].(string)
	key, ok := s.cfg.Keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return []byte(key), nil
}

// Fingerprint returns a short digest safe to place in audit metadata. Raw
// tokens are bearer credentials and must never be logged.
func (s *Service) Fingerprint(tokenString string) string {
	sum := sha3.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:8])
}
