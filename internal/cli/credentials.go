package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

var (
	ErrNotLoggedIn  = errors.New("not logged in, run: todoctl login --server URL --token JWT")
	errNoConfigHome = errors.New("cannot locate config directory: set TODOCTL_CONFIG, XDG_CONFIG_HOME or HOME")
)

// Credentials is what todoctl remembers between runs. The file may carry
// comments and trailing commas.
type Credentials struct {
	Server string `json:"server"`
	Token  string `json:"token"`
}

// CredentialsPath resolves the credentials file from the environment.
func CredentialsPath(env map[string]string) (string, error) {
	if path := env["TODOCTL_CONFIG"]; path != "" {
		return path, nil
	}
	if dir := env["XDG_CONFIG_HOME"]; dir != "" {
		return filepath.Join(dir, "todoctl", "credentials.json"), nil
	}
	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "todoctl", "credentials.json"), nil
	}
	return "", errNoConfigHome
}

// LoadCredentials reads the saved credentials file at path.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, ErrNotLoggedIn
		}
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Credentials{}, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	var creds Credentials
	if err := json.Unmarshal(standardized, &creds); err != nil {
		return Credentials{}, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	if creds.Server == "" || creds.Token == "" {
		return Credentials{}, ErrNotLoggedIn
	}
	return creds, nil
}

// SaveCredentials writes creds to path atomically with owner-only permissions.
func SaveCredentials(path string, creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := atomic.WriteFile(path, strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	// atomic.WriteFile doesn't set permissions for new files
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod credentials: %w", err)
	}
	return nil
}
