package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("REQ-1A2B3C4D", "certificates/REQ-1A2B3C4D.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	grant, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "REQ-1A2B3C4D", grant.ResourceID)
	require.Equal(t, "certificates/REQ-1A2B3C4D.pdf", grant.Path)
	require.WithinDuration(t, expiresAt, grant.ExpiresAt, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	issued := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	signer := NewSignedURLSigner("secret", time.Minute).WithClock(func() time.Time { return issued })
	token, _, err := signer.Generate("REQ-1", "REQ-1.pdf")
	require.NoError(t, err)

	later := signer.WithClock(func() time.Time { return issued.Add(2 * time.Minute) })
	_, err = later.Parse(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("REQ-1", "REQ-1.pdf")
	require.NoError(t, err)

	other := NewSignedURLSigner("other", time.Hour)
	_, err = other.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Parse(token + "0")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Parse("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}
