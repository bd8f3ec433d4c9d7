package integration

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMember(t *testing.T) {
	juan := CandidateUser{ID: uuid.New(), Name: "Juan Pérez"}
	maria := CandidateUser{ID: uuid.New(), Name: "María López"}
	juanCarlos := CandidateUser{ID: uuid.New(), Name: "Juan Carlos Díaz"}

	t.Run("Given name alone resolves to the full name", func(t *testing.T) {
		match, ok := ResolveMember("Juan", []CandidateUser{juan})
		require.True(t, ok)
		assert.Equal(t, juan.ID, match.UserID)
	})

	t.Run("Prefix of a given name does not match", func(t *testing.T) {
		_, ok := ResolveMember("Juanita Gómez", []CandidateUser{juan})
		assert.False(t, ok)
	})

	t.Run("Exact ignores case accents and spacing", func(t *testing.T) {
		match, ok := ResolveMember("  juan   PEREZ ", []CandidateUser{maria, juan})
		require.True(t, ok)
		assert.Equal(t, juan.ID, match.UserID)
		assert.Equal(t, MatchExact, match.Rule)
	})

	t.Run("Contained name either way", func(t *testing.T) {
		match, ok := ResolveMember("María", []CandidateUser{maria})
		require.True(t, ok)
		assert.Equal(t, MatchContains, match.Rule)

		match, ok = ResolveMember("Juan Carlos Díaz Ferreyra", []CandidateUser{maria, juanCarlos})
		require.True(t, ok)
		assert.Equal(t, juanCarlos.ID, match.UserID)
		assert.Equal(t, MatchContains, match.Rule)
	})

	t.Run("First word rule", func(t *testing.T) {
		match, ok := ResolveMember("Juan Martín", []CandidateUser{maria, juan})
		require.True(t, ok)
		assert.Equal(t, juan.ID, match.UserID)
		assert.Equal(t, MatchFirstWord, match.Rule)
	})

	t.Run("Earlier rule beats earlier user", func(t *testing.T) {
		match, ok := ResolveMember("Juan Pérez", []CandidateUser{juanCarlos, juan})
		require.True(t, ok)
		assert.Equal(t, juan.ID, match.UserID)
		assert.Equal(t, MatchExact, match.Rule)
	})

	t.Run("Substring inside a word does not match", func(t *testing.T) {
		_, ok := ResolveMember("Ana", []CandidateUser{{ID: uuid.New(), Name: "Juliana Ruiz"}})
		assert.False(t, ok)
	})

	t.Run("No candidates or empty name", func(t *testing.T) {
		_, ok := ResolveMember("Juan", nil)
		assert.False(t, ok)

		_, ok = ResolveMember("   ", []CandidateUser{juan})
		assert.False(t, ok)
	})

	t.Run("Users without a name are ignored", func(t *testing.T) {
		match, ok := ResolveMember("Juan", []CandidateUser{{ID: uuid.New(), Name: " "}, juan})
		require.True(t, ok)
		assert.Equal(t, juan.ID, match.UserID)
	})
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "jose maria gomez", NormalizeName(" José  MARÍA\tGómez "))
	assert.Equal(t, "", NormalizeName("   "))
}
