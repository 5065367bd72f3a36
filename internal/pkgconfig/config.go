// Package pkgconfig loads the daemon's [Daemon]/[Updates] INI
// configuration (§6 of the spec), with environment variable overrides
// and a .env dev overlay, following the teacher's layered
// file-then-env config loading.
package pkgconfig

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// DaemonConfig mirrors the [Daemon] INI section.
type DaemonConfig struct {
	DefaultBackend          string `env:"PKGKITD_DEFAULT_BACKEND"`
	DestDir                 string `env:"PKGKITD_DEST_DIR"`
	KeepCache               bool   `env:"PKGKITD_KEEP_CACHE"`
	BackendShutdownTimeout  int    `env:"PKGKITD_BACKEND_SHUTDOWN_TIMEOUT"`
	KeepEnvironment         bool   `env:"PKGKITD_KEEP_ENVIRONMENT"`
}

// UpdatesConfig mirrors the optional [Updates] INI section.
type UpdatesConfig struct {
	HidePackages bool `env:"PKGKITD_HIDE_PACKAGES"`
}

// Config is the whole of the daemon's static configuration.
type Config struct {
	Daemon  DaemonConfig
	Updates UpdatesConfig
}

// Default returns the documented defaults for every key.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			DefaultBackend:         "auto",
			DestDir:                "/",
			KeepCache:              false,
			BackendShutdownTimeout: 5,
			KeepEnvironment:        false,
		},
		Updates: UpdatesConfig{
			HidePackages: false,
		},
	}
}

// Load reads path (if it exists), overlays environment overrides, and
// loads a .env file first so local runs can set PKGKITD_* without
// exporting anything. An absent config file is not an error — the
// daemon runs on defaults, as the original does.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		if err := loadINI(path, cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Daemon.DefaultBackend == "" {
		c.Daemon.DefaultBackend = "auto"
	}
	if c.Daemon.DestDir == "" {
		c.Daemon.DestDir = "/"
	}
	if c.Daemon.BackendShutdownTimeout <= 0 {
		c.Daemon.BackendShutdownTimeout = 5
	}
}

// loadINI is a minimal [section]/key=value parser — the daemon's config
// format has no nesting, lists, or quoting rules beyond that, so a full
// INI library is unneeded machinery.
func loadINI(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	section := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(line, "["), "]"))
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])

		switch section {
		case "daemon":
			applyDaemonKey(&cfg.Daemon, key, value)
		case "updates":
			applyUpdatesKey(&cfg.Updates, key, value)
		}
	}
	return scanner.Err()
}

func applyDaemonKey(d *DaemonConfig, key, value string) {
	switch key {
	case "defaultbackend":
		d.DefaultBackend = value
	case "destdir":
		d.DestDir = value
	case "keepcache":
		d.KeepCache = parseBool(value)
	case "backendshutdowntimeout":
		if n, err := strconv.Atoi(value); err == nil {
			d.BackendShutdownTimeout = n
		}
	case "keepenvironment":
		d.KeepEnvironment = parseBool(value)
	}
}

func applyUpdatesKey(u *UpdatesConfig, key, value string) {
	if key == "hidepackages" {
		u.HidePackages = parseBool(value)
	}
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}
