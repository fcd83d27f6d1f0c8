// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/enginedesk/enginedesk/internal/engine"
	"github.com/enginedesk/enginedesk/internal/issue"
	"github.com/enginedesk/enginedesk/pkg/platform"
)

const (
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. ENGINEDESK_LOG_LEVEL.
	EnvPrefix = "ENGINEDESK"
)

//go:embed config_schema.cue
var configSchema string

// ErrConfigExists is returned by CreateDefaultConfig when the file exists
// and overwriting was not requested.
var ErrConfigExists = errors.New("config file already exists")

// ConfigDir returns the enginedesk configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, platform.AppName), nil
}

// FilePath returns the config file path inside dir, or inside ConfigDir when
// dir is empty.
func FilePath(dir string) (string, error) {
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("default_connection", defaults.DefaultConnection)
	v.SetDefault("api_timeout_ms", defaults.APITimeoutMs)
	v.SetDefault("connections", []map[string]any{})
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadWithOptions loads the configuration selected by opts. A missing
// default file is not an error; a missing explicit file is.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("load config canceled: %w", err)
	}

	v := newViper()
	resolvedPath := opts.ConfigFilePath

	if resolvedPath != "" {
		if !fileExists(resolvedPath) {
			return nil, "", loadError(resolvedPath, fmt.Errorf("config file not found: %s", resolvedPath),
				"Verify the file path is correct",
				"Use 'enginedesk config init' to create a default configuration")
		}
	} else {
		path, err := FilePath(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}
		if fileExists(path) {
			resolvedPath = path
		}
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", loadError(resolvedPath, err,
				"Check that the file contains valid CUE syntax",
				"Verify the configuration values match the expected schema")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	assignIDs(cfg.Connections)

	if err := validateConnections(cfg.Connections); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Give every connection a unique name and id").
			WithSuggestion("Use a host that belongs to the connection's engine").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return &cfg, resolvedPath, nil
}

func loadError(path string, err error, suggestions ...string) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestions(suggestions...).
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		BuildError()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := checkFileSize(data, maxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func assignIDs(conns []Connection) {
	for i := range conns {
		if conns[i].ID == "" {
			conns[i].ID = uuid.NewString()
		}
	}
}

// validateConnections checks what the schema cannot: unique ids and names,
// and hosts that belong to the declared engine.
func validateConnections(conns []Connection) error {
	ids := make(map[string]int, len(conns))
	names := make(map[string]int, len(conns))
	for i, conn := range conns {
		if first, ok := ids[conn.ID]; ok {
			return fmt.Errorf("connections[%d]: duplicate id %q (same as connections[%d])", i, conn.ID, first)
		}
		ids[conn.ID] = i

		name := strings.ToLower(conn.Name)
		if first, ok := names[name]; ok {
			return fmt.Errorf("connections[%d]: duplicate name %q (same as connections[%d])", i, conn.Name, first)
		}
		names[name] = i

		if err := conn.Engine.Validate(); err != nil {
			return fmt.Errorf("connections[%d]: %w", i, err)
		}
		if conn.Host.Engine() != conn.Engine {
			return fmt.Errorf("connections[%d]: host %q does not belong to engine %q: %w", i, conn.Host, conn.Engine, engine.ErrUnknownHost)
		}
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default config file into dir (ConfigDir when
// empty) and returns its path. An existing file is kept unless force is set.
func CreateDefaultConfig(dir string, force bool) (string, error) {
	path, err := FilePath(dir)
	if err != nil {
		return "", err
	}
	if fileExists(path) && !force {
		return path, ErrConfigExists
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders cfg as a config file.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// enginedesk configuration\n\n")
	fmt.Fprintf(&sb, "log_level: %q\n", cfg.LogLevel)
	fmt.Fprintf(&sb, "api_timeout_ms: %d\n", cfg.APITimeoutMs)
	if cfg.DefaultConnection != "" {
		fmt.Fprintf(&sb, "default_connection: %q\n", cfg.DefaultConnection)
	}

	if len(cfg.Connections) == 0 {
		sb.WriteString("\n// connections: [{name: \"podman\", engine: \"podman\", host: \"podman.native\"}]\n")
		sb.WriteString("connections: []\n")
		return sb.String()
	}

	sb.WriteString("\nconnections: [\n")
	for _, conn := range cfg.Connections {
		sb.WriteString("\t{\n")
		writeField(&sb, 2, "id", conn.ID)
		writeField(&sb, 2, "name", conn.Name)
		writeField(&sb, 2, "label", conn.Label)
		writeField(&sb, 2, "engine", string(conn.Engine))
		writeField(&sb, 2, "host", string(conn.Host))
		if s := conn.Settings; s != nil {
			sb.WriteString("\t\tsettings: {\n")
			writeField(&sb, 3, "mode", string(s.Mode))
			if s.Rootfull {
				sb.WriteString("\t\t\trootfull: true\n")
			}
			sb.WriteString("\t\t\tapi: {\n")
			writeField(&sb, 4, "base_url", s.API.BaseURL)
			writeField(&sb, 4, "uri", s.API.URI)
			writeField(&sb, 4, "relay", s.API.Relay)
			if s.API.AutoStart {
				sb.WriteString("\t\t\t\tauto_start: true\n")
			}
			sb.WriteString("\t\t\t}\n")
			sb.WriteString("\t\t\tprogram: {\n")
			writeField(&sb, 4, "name", s.Program.Name)
			writeField(&sb, 4, "path", s.Program.Path)
			writeField(&sb, 4, "version", s.Program.Version)
			sb.WriteString("\t\t\t}\n")
			if c := s.Controller; c != nil {
				sb.WriteString("\t\t\tcontroller: {\n")
				writeField(&sb, 4, "name", c.Name)
				writeField(&sb, 4, "path", c.Path)
				writeField(&sb, 4, "version", c.Version)
				writeField(&sb, 4, "scope", c.Scope)
				sb.WriteString("\t\t\t}\n")
			}
			sb.WriteString("\t\t}\n")
		}
		sb.WriteString("\t},\n")
	}
	sb.WriteString("]\n")
	return sb.String()
}

func writeField(sb *strings.Builder, indent int, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "%s%s: %q\n", strings.Repeat("\t", indent), key, value)
}
