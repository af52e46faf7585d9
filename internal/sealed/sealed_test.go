package sealed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := New(testSecret, 10)
	require.NoError(t, err)

	plaintext := []byte(`{"projectId":"b.p1","folders":[]}`)
	ct, err := s.Seal("OPER1", plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(ct), "b.p1")

	got, err := s.Open("OPER1", ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestOpenWithOtherOperatorFails(t *testing.T) {
	s, err := New(testSecret, 10)
	require.NoError(t, err)

	ct, err := s.Seal("OPER1", []byte("desired state"))
	require.NoError(t, err)

	_, err = s.Open("OPER2", ct)
	assert.Error(t, err)
}

func TestOpenWithOtherSecretFails(t *testing.T) {
	a, err := New(testSecret, 10)
	require.NoError(t, err)
	b, err := New(strings.Repeat("z", MinSecretLength), 10)
	require.NoError(t, err)

	ct, err := a.Seal("OPER1", []byte("desired state"))
	require.NoError(t, err)
	_, err = b.Open("OPER1", ct)
	assert.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	_, err := New("short", 10)
	assert.ErrorIs(t, err, ErrSecretTooShort)

	_, err = New(testSecret, 31)
	assert.Error(t, err)

	s, err := New(testSecret, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkFactor, s.workFactor)
}

func TestSealRequiresOperator(t *testing.T) {
	s, err := New(testSecret, 10)
	require.NoError(t, err)

	_, err = s.Seal("", []byte("x"))
	assert.Error(t, err)
	_, err = s.Open("", []byte("x"))
	assert.Error(t, err)
}
