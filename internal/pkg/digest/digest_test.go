package digest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MissingPepper(t *testing.T) {
	for _, pepper := range []string{"", "   "} {
		e, err := New(pepper)
		assert.Nil(t, e)
		assert.ErrorIs(t, err, ErrMissingPepper)
	}
}

func TestDigest_MatchesHMACSHA256(t *testing.T) {
	e, err := New("pepper")
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("pepper"))
	mac.Write([]byte("sk_live_abc"))
	want := hex.EncodeToString(mac.Sum(nil))

	got := e.Digest("sk_live_abc")
	assert.Equal(t, want, got)
	assert.Len(t, got, Size)
}

func TestDigest_Deterministic(t *testing.T) {
	e, err := New("pepper")
	require.NoError(t, err)

	assert.Equal(t, e.Digest("secret"), e.Digest("secret"))
	assert.True(t, e.Matches("secret", e.Digest("secret")))
	assert.False(t, e.Matches("Secret", e.Digest("secret")))
}

func TestDigest_DistinctInputs(t *testing.T) {
	e, err := New("pepper")
	require.NoError(t, err)

	seen := make(map[string]struct{}, 500)
	for i := 0; i < 500; i++ {
		d := e.Digest(fmt.Sprintf("secret-%d", i))
		_, dup := seen[d]
		require.False(t, dup, "digest collision at %d", i)
		seen[d] = struct{}{}
	}
}

func TestDigest_PepperChangesOutput(t *testing.T) {
	a, err := New("pepper-a")
	require.NoError(t, err)
	b, err := New("pepper-b")
	require.NoError(t, err)

	assert.NotEqual(t, a.Digest("secret"), b.Digest("secret"))
}

func TestEngineString_RedactsPepper(t *testing.T) {
	e, err := New("very-secret-pepper")
	require.NoError(t, err)

	assert.NotContains(t, fmt.Sprintf("%v", e), "very-secret-pepper")
	assert.NotContains(t, fmt.Sprintf("%+v", e), "very-secret-pepper")
}
