package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIssueAndParsePair(t *testing.T) {
	s := NewSigner("artledger-test", "test-signing-secret", time.Minute, time.Hour)

	pair, err := s.IssuePair("admin")
	assert.NoError(t, err)

	access, err := s.Parse(pair.AccessToken)
	assert.NoError(t, err)
	assert.Equal(t, "admin", access.AdminID)
	assert.Equal(t, ScopeLedgerAdmin, access.Scope)

	refresh, err := s.Parse(pair.RefreshToken)
	assert.NoError(t, err)
	assert.Equal(t, ScopeLedgerAdmin, refresh.Scope)
	assert.True(t, refresh.ExpiresAt.Time.After(access.ExpiresAt.Time))
}

func TestParseRejectsWrongKeyAndIssuer(t *testing.T) {
	s := NewSigner("artledger-test", "test-signing-secret", time.Minute, time.Hour)
	pair, err := s.IssuePair("admin")
	assert.NoError(t, err)

	_, err = NewSigner("artledger-test", "other-secret", time.Minute, time.Hour).Parse(pair.AccessToken)
	assert.Error(t, err)

	_, err = NewSigner("someone-else", "test-signing-secret", time.Minute, time.Hour).Parse(pair.AccessToken)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	s := NewSigner("artledger-test", "test-signing-secret", -time.Minute, time.Hour)
	pair, err := s.IssuePair("admin")
	assert.NoError(t, err)

	_, err = s.Parse(pair.AccessToken)
	assert.Error(t, err)
}
