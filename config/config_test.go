package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const minimalTOML = `
[Identity]
Hostname = "abcdefghijklmnop"
KeyFile = "/var/lib/torsion/identity.key"
`

func TestLoadFillsDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := Load([]byte(minimalTOML))
	require.NoError(err)

	require.Equal(uint16(defaultListenPort), cfg.ListenPort)
	require.Equal(defaultSOCKSNetwork, cfg.SOCKS.Network)
	require.Equal(defaultSOCKSAddress, cfg.SOCKS.Address)
	require.Equal(defaultLogLevel, cfg.Logging.Level)
	require.Equal(defaultLowAttempts, cfg.Reconnect.LowAttempts)
	require.Equal(defaultHighDelaySeconds, cfg.Reconnect.HighDelaySeconds)
}

func TestLoadMissingIdentityFails(t *testing.T) {
	require := require.New(t)

	_, err := Load([]byte(`ListenPort = 1234`))
	require.Error(err)
}

func TestLoadInvalidLogLevelFails(t *testing.T) {
	require := require.New(t)

	_, err := Load([]byte(minimalTOML + "\n[Logging]\nLevel = \"LOUD\"\n"))
	require.Error(err)
}

func TestReconnectPolicyConversion(t *testing.T) {
	require := require.New(t)

	cfg, err := Load([]byte(minimalTOML + "\n[Reconnect]\nLowDelaySeconds = 5\nHighDelaySeconds = 90\n"))
	require.NoError(err)

	policy := cfg.Reconnect.Policy()
	require.Equal(defaultLowAttempts, policy.LowAttempts)
	require.Equal(5.0, policy.LowDelay.Seconds())
	require.Equal(90.0, policy.HighDelay.Seconds())
}
