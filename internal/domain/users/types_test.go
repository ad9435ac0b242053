package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPassword(t *testing.T) {
	HashCost = bcrypt.MinCost

	var p Password
	require.NoError(t, p.Set("correct horse"))
	assert.NotEqual(t, []byte("correct horse"), p.Hash)
	assert.NoError(t, p.Compare("correct horse"))
	assert.ErrorIs(t, p.Compare("wrong"), bcrypt.ErrMismatchedHashAndPassword)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "alice@example.com", Normalize("  Alice@Example.COM "))
	assert.Equal(t, "", Normalize("   "))
}

func TestSummary(t *testing.T) {
	u := &User{ID: "u1", Name: "Alice", Username: "alice", Email: "a@example.com", Avatar: "a.png"}
	assert.Equal(t, Summary{ID: "u1", Name: "Alice", Username: "alice", Avatar: "a.png"}, u.Summary())
}
