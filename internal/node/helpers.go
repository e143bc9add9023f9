package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// loadCode reads the token contract binary deployed to every token account.
func loadCode(path string) ([]byte, error) {
	path = expandHome(path)
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token code: %w", err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("token code %s is empty", path)
	}
	return code, nil
}

// FactoryPrefix returns the keyspace of a factory account in the shared
// database.
func FactoryPrefix(accountID string) []byte {
	return []byte("f/" + accountID + "/")
}
