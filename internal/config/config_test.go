package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateClampsMaxImageKB(t *testing.T) {
	cfg := Config{ConnectionMode: ModeLAN, MaxImageKB: 0}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultImageKB, cfg.MaxImageKB)

	cfg = Config{ConnectionMode: ModeLAN, MaxImageKB: -5}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, minImageKB, cfg.MaxImageKB)

	cfg = Config{ConnectionMode: ModeLAN, MaxImageKB: maxImageKB * 2}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, maxImageKB, cfg.MaxImageKB)
}

func TestValidateServerModeRequiresServerURL(t *testing.T) {
	cfg := Config{ConnectionMode: ModeServer}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateServerModeRejectsNonWebsocketScheme(t *testing.T) {
	cfg := Config{ConnectionMode: ModeServer, ServerURL: "https://example.com", Token: "t"}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateServerModeRequiresCredentials(t *testing.T) {
	cfg := Config{ConnectionMode: ModeServer, ServerURL: "wss://example.com"}
	err := cfg.Validate()
	assert.Error(t, err)

	cfg.Token = "a-token"
	assert.NoError(t, cfg.Validate())
}

func TestValidateAcceptsUsernamePassword(t *testing.T) {
	cfg := Config{ConnectionMode: ModeServer, ServerURL: "wss://example.com", Username: "u", Password: "p"}
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Config{ConnectionMode: "bogus"}
	assert.Error(t, cfg.Validate())
}

func TestEffectiveDeviceNameFallsBackToHostnameOrDeviceID(t *testing.T) {
	cfg := Config{LANDeviceName: "explicit-name"}
	assert.Equal(t, "explicit-name", cfg.EffectiveDeviceName("deadbeef-0000-0000-0000-000000000000"))

	cfg = Config{}
	name := cfg.EffectiveDeviceName("deadbeef-0000-0000-0000-000000000000")
	assert.NotEmpty(t, name)
}

func TestDefaultProducesValidLANConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ModeLAN, cfg.ConnectionMode)
	assert.Equal(t, defaultImageKB, cfg.MaxImageKB)
	require.NoError(t, cfg.Validate())
}

func TestBindViperFlagsOverrideDefaults(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("server-url", "", "")
	require.NoError(t, cmd.Flags().Set("server-url", "wss://flag.example.com"))

	v := viper.New()
	require.NoError(t, BindViper(cmd, v))

	assert.Equal(t, "wss://flag.example.com", v.GetString("server-url"))
}

func TestBindViperEnvVarsAreVisible(t *testing.T) {
	// AutomaticEnv has no key replacer configured (matching the teacher's own
	// config wiring), so this only round-trips cleanly for dash-free flag
	// names: a dashed flag like "server-url" would need "RSCV_SERVER-URL",
	// which most shells cannot express as an env var name at all.
	t.Setenv("RSCV_TOKEN", "env-token")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("token", "", "")

	v := viper.New()
	require.NoError(t, BindViper(cmd, v))

	assert.Equal(t, "env-token", v.GetString("token"))
}
