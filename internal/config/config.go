// Package config defines the RustSyncCV agent's Config (§3/§6 of
// SPEC_FULL.md) and the viper-backed precedence chain that resolves it from
// defaults, a TOML file, RSCV_* environment variables, and CLI flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rustsynccv/rustsynccv-go/internal/ipc"
)

// Mode selects which transport a session uses. The two are mutually
// exclusive per session (§1).
type Mode string

const (
	ModeServer Mode = "server"
	ModeLAN    Mode = "lan"
)

const (
	minImageKB     = 1
	maxImageKB     = 524288
	defaultImageKB = 512
)

// Config is the core's single source of runtime configuration. It is loaded
// once at Start/Reload and is immutable within an active session.
type Config struct {
	ServerURL         string `mapstructure:"server_url"`
	Token             string `mapstructure:"token"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	MaxImageKB        int    `mapstructure:"max_image_kb"`
	ConnectionMode    Mode   `mapstructure:"connection_mode"`
	LANDeviceName     string `mapstructure:"lan_device_name"`
	TrustInsecureCert bool   `mapstructure:"trust_insecure_cert"`
	LANPreSharedKey   string `mapstructure:"lan_psk"`

	LogFormat     string `mapstructure:"log_format"`
	LogLevel      string `mapstructure:"log_level"`
	ControlSocket string `mapstructure:"control_socket"`
}

// Validate clamps and checks Config fields, returning a Configuration-class
// error (§7) on anything that cannot be made sane.
func (c *Config) Validate() error {
	if c.MaxImageKB == 0 {
		c.MaxImageKB = defaultImageKB
	}
	if c.MaxImageKB < minImageKB {
		c.MaxImageKB = minImageKB
	}
	if c.MaxImageKB > maxImageKB {
		c.MaxImageKB = maxImageKB
	}

	switch c.ConnectionMode {
	case ModeServer:
		if c.ServerURL == "" {
			return fmt.Errorf("config: connection_mode=server requires server_url")
		}
		u, err := url.Parse(c.ServerURL)
		if err != nil {
			return fmt.Errorf("config: unparseable server_url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("config: server_url must use ws:// or wss://, got %q", u.Scheme)
		}
		if c.Token == "" && (c.Username == "" || c.Password == "") {
			return fmt.Errorf("config: connection_mode=server requires a token or username+password")
		}
	case ModeLAN:
		// no additional required fields; lan_device_name falls back below.
	default:
		return fmt.Errorf("config: connection_mode must be %q or %q, got %q", ModeServer, ModeLAN, c.ConnectionMode)
	}
	return nil
}

// ImageLimitKB satisfies internal/runtime.ConfigLike so the Supervisor can
// size the Monitor's image cap without importing this package.
func (c *Config) ImageLimitKB() int { return c.MaxImageKB }

// EffectiveDeviceName resolves lan_device_name per §6: empty falls back to
// the OS hostname, and failing that to "RSCV-<first8 of deviceID>".
func (c *Config) EffectiveDeviceName(deviceID string) string {
	if c.LANDeviceName != "" {
		return c.LANDeviceName
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	n := 8
	if len(deviceID) < n {
		n = len(deviceID)
	}
	return "RSCV-" + deviceID[:n]
}

// Default returns a Config with the spec's documented defaults.
func Default() Config {
	return Config{
		MaxImageKB:     defaultImageKB,
		ConnectionMode: ModeLAN,
		LogFormat:      "auto",
		ControlSocket:  ipc.SocketPath(),
	}
}

// BindViper wires a command's flags into v with the standard config file
// search order and RSCV_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → RSCV_* env vars → flags
func BindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("rscvd")
		v.SetConfigType("toml")
		// viper reads only the first rscvd.toml it finds, searching paths in
		// the order they were added, so the highest-precedence path goes first.
		paths := configPaths()
		for i := len(paths) - 1; i >= 0; i-- {
			v.AddConfigPath(paths[i])
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("RSCV")
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("config: binding flags: %w", err)
	}
	return nil
}

// configPaths returns the ordered list of directories to search for
// rscvd.toml. Paths are ordered lowest → highest precedence; BindViper adds
// them to viper in reverse.
func configPaths() []string {
	var paths []string

	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, fmt.Sprintf(`%s\rscv`, pd))
		}
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			paths = append(paths, fmt.Sprintf(`%s\rscv`, appdata))
		}
	} else {
		paths = append(paths, "/etc/rscv")
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, fmt.Sprintf("%s/.config/rscv", home))
		}
	}

	return paths
}

// FromViper unmarshals v into a Config and validates it.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
