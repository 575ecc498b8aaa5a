package devenv

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"courtwatch/lib/configutil"
)

var modName = regexp.MustCompile(`(?m)^module *([\w\-_/.]+)$`)

func isWorkspaceRoot(currentdir string) bool {
	mod, err := os.ReadFile(filepath.Join(currentdir, "go.mod"))
	if err != nil {
		return false
	}
	matches := modName.FindSubmatch(mod)
	return len(matches) >= 2 && string(matches[1]) == "courtwatch"
}

func GetWorkspaceRoot() (string, error) {
	currentdir, err := filepath.Abs(".")
	if err != nil {
		return "", err
	}
	root, err := filepath.Abs("/")
	if err != nil {
		return "", err
	}

	for currentdir != root {
		if !isWorkspaceRoot(currentdir) {
			currentdir = filepath.Join(currentdir, "..")
			continue
		}
		return currentdir, nil
	}

	return "", os.ErrNotExist
}

func GetStateFilePath(path string) (string, error) {
	root, err := GetWorkspaceRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "dev", ".state", path), nil
}

// GetStateConfig reads a json5 config (with .local override) living
// under dev/.state.
func GetStateConfig[T any](path string) (T, error) {
	configPath, err := GetStateFilePath(path)
	if err != nil {
		var out T
		return out, err
	}
	out, err := configutil.ReadConfig[T](configPath)
	if os.IsNotExist(err) {
		return out, fmt.Errorf("no config at %s: %w", configPath, err)
	}
	return out, err
}

// ResolvePath expands a leading "<dev_state>" into the workspace's
// dev/.state directory, any other path is returned as is. Outside of a
// checkout, "<dev_state>" is .courtwatch in the working directory.
func ResolvePath(path string) (string, error) {
	if !strings.HasPrefix(path, "<dev_state>") {
		return path, nil
	}

	stateDir := ".courtwatch"
	root, err := GetWorkspaceRoot()
	if err == nil {
		stateDir = filepath.Join(root, "dev", ".state")
	} else if !os.IsNotExist(err) {
		return "", err
	}

	err = os.MkdirAll(stateDir, 0777)
	if err != nil {
		return "", err
	}

	subpath := filepath.Join(strings.Split(filepath.ToSlash(path), "/")[1:]...)
	return filepath.Join(stateDir, subpath), nil
}
