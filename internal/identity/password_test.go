package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testParams keep hashing fast in tests.
var testParams = Params{
	Memory:      64,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  8,
	KeyLength:   16,
}

func TestHashPassword_RoundTrip(t *testing.T) {
	encoded, err := HashPassword("everythinghastostartsomewhere", testParams)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=64,t=1,p=1$"), encoded)
	assert.NoError(t, VerifyPassword(encoded, "everythinghastostartsomewhere"))
	assert.ErrorIs(t, VerifyPassword(encoded, "everythinghastostartsomewherE"), ErrPasswordMismatch)
	assert.ErrorIs(t, VerifyPassword(encoded, ""), ErrPasswordMismatch)
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	a, err := HashPassword("same password", testParams)
	require.NoError(t, err)
	b, err := HashPassword("same password", testParams)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyPassword_DummyHashIsWellFormed(t *testing.T) {
	p, salt, key, err := decodeHash(dummyHash)
	require.NoError(t, err)

	assert.Equal(t, uint32(15000), p.Memory)
	assert.Equal(t, uint32(2), p.Iterations)
	assert.Equal(t, uint8(1), p.Parallelism)
	assert.Len(t, salt, 16)
	assert.Len(t, key, 32)
	assert.ErrorIs(t, VerifyPassword(dummyHash, "anything"), ErrPasswordMismatch)
}

func TestVerifyPassword_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"plain text", "hunter2"},
		{"bcrypt", "$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"},
		{"argon2i", "$argon2i$v=19$m=64,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA"},
		{"wrong version", "$argon2id$v=16$m=64,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA"},
		{"missing params", "$argon2id$v=19$$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA"},
		{"zero memory", "$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA"},
		{"bad salt", "$argon2id$v=19$m=64,t=1,p=1$!!!$aGFzaGhhc2hoYXNoaGFzaA"},
		{"empty hash", "$argon2id$v=19$m=64,t=1,p=1$c2FsdHNhbHQ$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, VerifyPassword(tt.encoded, "password"), ErrMalformedHash)
		})
	}
}
