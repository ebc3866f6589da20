package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds all credentials and defaults for the gateway
type Config struct {
	Console  ConsoleConfig
	Server   ServerConfig
	Defaults SessionDefaults
}

// ConsoleConfig holds the account identity used for registration and launch specs
type ConsoleConfig struct {
	AccountId    string
	OnlineId     string
	RegistryPath string
}

// ServerConfig holds the diagnostic HTTP endpoint's listen address
type ServerConfig struct {
	ListenAddr string
}

// SessionDefaults holds the built-in tier of the three-tier SessionStartOptions
// resolution described in pkg/session/defaults.go.
type SessionDefaults struct {
	Width          int
	Height         int
	Fps            int
	BitrateKbps    int
	Codec          string
	Hdr            bool
	AudioChannels  string
	MTU            int
	Language       string
	AcceptButton   string
	Controllers    []string
}

// Load reads configuration from a .env-style file
func Load(envPath string) (*Config, error) {
	file, err := os.Open(envPath)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer file.Close()

	cfg := &Config{
		Defaults: defaultSessionDefaults(),
	}
	cfg.Server.ListenAddr = ":8080"
	cfg.Console.RegistryPath = "devices.json"

	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			decodedValue = value
		}

		switch key {
		case "account_id":
			cfg.Console.AccountId = decodedValue
		case "online_id":
			cfg.Console.OnlineId = decodedValue
		case "registry_path":
			cfg.Console.RegistryPath = decodedValue
		case "listen_addr":
			cfg.Server.ListenAddr = decodedValue
		case "default_width":
			cfg.Defaults.Width = atoiOr(decodedValue, cfg.Defaults.Width)
		case "default_height":
			cfg.Defaults.Height = atoiOr(decodedValue, cfg.Defaults.Height)
		case "default_fps":
			cfg.Defaults.Fps = atoiOr(decodedValue, cfg.Defaults.Fps)
		case "default_bitrate_kbps":
			cfg.Defaults.BitrateKbps = atoiOr(decodedValue, cfg.Defaults.BitrateKbps)
		case "default_codec":
			cfg.Defaults.Codec = decodedValue
		case "default_hdr":
			cfg.Defaults.Hdr = decodedValue == "true" || decodedValue == "1"
		case "default_audio_channels":
			cfg.Defaults.AudioChannels = decodedValue
		case "default_mtu":
			cfg.Defaults.MTU = atoiOr(decodedValue, cfg.Defaults.MTU)
		case "default_language":
			cfg.Defaults.Language = decodedValue
		case "default_accept_button":
			cfg.Defaults.AcceptButton = decodedValue
		case "default_controllers":
			cfg.Defaults.Controllers = strings.Split(decodedValue, ",")
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan env file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func defaultSessionDefaults() SessionDefaults {
	return SessionDefaults{
		Width:         1280,
		Height:        720,
		Fps:           60,
		BitrateKbps:   10000,
		Codec:         "avc",
		Hdr:           false,
		AudioChannels: "5.1",
		MTU:           1454,
		Language:      "en",
		AcceptButton:  "X",
		Controllers:   []string{"xinput", "ds3", "ds4"},
	}
}

// Validate checks that all required configuration fields are present
func (c *Config) Validate() error {
	if c.Console.AccountId == "" {
		return fmt.Errorf("missing account_id")
	}
	if c.Console.OnlineId == "" {
		return fmt.Errorf("missing online_id")
	}
	if c.Defaults.Width <= 0 || c.Defaults.Height <= 0 {
		return fmt.Errorf("invalid default resolution")
	}
	if c.Defaults.Codec != "avc" && c.Defaults.Codec != "hevc" {
		return fmt.Errorf("invalid default_codec %q (must be avc or hevc)", c.Defaults.Codec)
	}
	return nil
}
