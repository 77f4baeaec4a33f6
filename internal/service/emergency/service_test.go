package emergency

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordvault/access-api/internal/config"
	"github.com/recordvault/access-api/pkg/errors"
)

func testConfig() config.TokenConfig {
	return config.TokenConfig{
		Keys:        map[string]string{"k1": "test-signing-key"},
		ActiveKeyID: "k1",
		DefaultTTL:  time.Hour,
		MaxTTL:      24 * time.Hour,
	}
}

func newTestService(cfg config.TokenConfig, now time.Time) *Service {
	s := NewService(cfg)
	s.now = func() time.Time { return now }
	return s
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(testConfig(), now)
	owner := uuid.New()

	token, err := svc.Issue(context.Background(), owner, 0)
	require.NoError(t, err)
	assert.Equal(t, owner, token.OwnerID)
	assert.Equal(t, now.Add(time.Hour), token.ExpiresAt)

	verified, err := svc.Verify(context.Background(), token.Token)
	require.NoError(t, err)
	assert.Equal(t, owner, verified)
}

func TestVerifyJustBeforeExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(testConfig(), issued)

	token, err := svc.Issue(context.Background(), uuid.New(), time.Hour)
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(59 * time.Minute) }
	_, err = svc.Verify(context.Background(), token.Token)
	assert.NoError(t, err)
}

func TestVerifyJustAfterExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(testConfig(), issued)

	token, err := svc.Issue(context.Background(), uuid.New(), time.Hour)
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(61 * time.Minute) }
	_, err = svc.Verify(context.Background(), token.Token)
	assert.True(t, errors.IsCode(err, errors.ErrExpired))
}

func TestIssueRejectsTTLAboveMax(t *testing.T) {
	svc := newTestService(testConfig(), time.Now())

	_, err := svc.Issue(context.Background(), uuid.New(), 48*time.Hour)
	assert.True(t, errors.IsCode(err, errors.ErrBadRequest))
}

func TestVerifyTamperedToken(t *testing.T) {
	svc := newTestService(testConfig(), time.Now())

	token, err := svc.Issue(context.Background(), uuid.New(), time.Hour)
	require.NoError(t, err)

	tampered := token.Token[:len(token.Token)-4] + "AAAA"
	_, err = svc.Verify(context.Background(), tampered)
	assert.True(t, errors.IsCode(err, errors.ErrInvalid))
}

func TestVerifyGarbageToken(t *testing.T) {
	svc := newTestService(testConfig(), time.Now())

	_, err := svc.Verify(context.Background(), "not-a-token")
	assert.True(t, errors.IsCode(err, errors.ErrInvalid))
}

func TestKeyRotationHonorsOldKeys(t *testing.T) {
	now := time.Now()
	oldCfg := testConfig()
	svc := newTestService(oldCfg, now)

	token, err := svc.Issue(context.Background(), uuid.New(), time.Hour)
	require.NoError(t, err)

	// Rotate: new active key, old key still listed. Outstanding tokens verify.
	rotated := config.TokenConfig{
		Keys:        map[string]string{"k1": "test-signing-key", "k2": "new-signing-key"},
		ActiveKeyID: "k2",
		DefaultTTL:  time.Hour,
		MaxTTL:      24 * time.Hour,
	}
	svcRotated := newTestService(rotated, now)
	_, err = svcRotated.Verify(context.Background(), token.Token)
	assert.NoError(t, err)

	// Drop the old key entirely: every outstanding token dies at once.
	dropped := config.TokenConfig{
		Keys:        map[string]string{"k2": "new-signing-key"},
		ActiveKeyID: "k2",
		DefaultTTL:  time.Hour,
		MaxTTL:      24 * time.Hour,
	}
	svcDropped := newTestService(dropped, now)
	_, err = svcDropped.Verify(context.Background(), token.Token)
	assert.True(t, errors.IsCode(err, errors.ErrInvalid))
}

func TestFingerprintIsStableAndOpaque(t *testing.T) {
	svc := newTestService(testConfig(), time.Now())

	token, err := svc.Issue(context.Background(), uuid.New(), time.Hour)
	require.NoError(t, err)

	fp := svc.Fingerprint(token.Token)
	assert.Equal(t, fp, svc.Fingerprint(token.Token))
	assert.Len(t, fp, 16)
	assert.NotContains(t, token.Token, fp)
}
