package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require := require.New(t)

	t.Run("empty is intermediate", func(t *testing.T) {
		require.Equal(Intermediate, New().Validate(""))
	})

	t.Run("full match is accept", func(t *testing.T) {
		require.Equal(Accept, New().Validate("torsion:abcdefghijklmnop"))
	})

	t.Run("uppercase fixes up to accept", func(t *testing.T) {
		require.Equal(Accept, New().Validate("torsion:ABCDEFGHIJKLMNOP"))
	})

	t.Run("surrounding whitespace is trimmed", func(t *testing.T) {
		require.Equal(Accept, New().Validate("  torsion:abcdefghijklmnop  "))
	})

	t.Run("disallowed digit rejects", func(t *testing.T) {
		require.Equal(Reject, New().Validate("torsion:1"))
	})

	t.Run("prefix of the literal keyword is intermediate", func(t *testing.T) {
		require.Equal(Intermediate, New().Validate("tors"))
	})

	t.Run("prefix of a valid base32 body is intermediate", func(t *testing.T) {
		require.Equal(Intermediate, New().Validate("torsion:abc"))
	})

	t.Run("too many base32 characters rejects", func(t *testing.T) {
		require.Equal(Reject, New().Validate("torsion:abcdefghijklmnopq"))
	})

	t.Run("garbage rejects", func(t *testing.T) {
		require.Equal(Reject, New().Validate("not an id at all"))
	})
}

func TestValidateExistingContactDowngrade(t *testing.T) {
	require := require.New(t)

	const id = "torsion:abcdefghijklmnop"
	var notified any

	v := NewWithLookup(func(candidate string) (any, bool) {
		if candidate == id {
			return "existing-contact", true
		}
		return nil, false
	})
	v.OnContactExists = func(contact any) { notified = contact }

	require.Equal(Intermediate, v.Validate(id))
	require.Equal("existing-contact", notified)
}

func TestHostnameRoundTrip(t *testing.T) {
	require := require.New(t)

	ids := []string{
		"torsion:abcdefghijklmnop",
		"torsion:2222222222222222",
		"torsion:77777777zzzzzzzz",
	}

	for _, id := range ids {
		host := IDToHostname(id)
		require.NotEmpty(host)
		require.Equal(id, HostnameToID(host))

		bareHost := host[:len(host)-len(".onion")]
		require.Equal(id, HostnameToID(bareHost))
	}
}

func TestIDToHostnameInvalid(t *testing.T) {
	require := require.New(t)

	require.Empty(IDToHostname(""))
	require.Empty(IDToHostname("torsion:1"))
	require.Empty(IDToHostname("abcdefghijklmnop"))
}

func TestHostnameToIDInvalid(t *testing.T) {
	require := require.New(t)

	require.Empty(HostnameToID(""))
	require.Empty(HostnameToID("short.onion"))
	require.Empty(HostnameToID("abcdefghijklmno1"))
	require.Empty(HostnameToID("abcdefghijklmno1.onion"))
}
