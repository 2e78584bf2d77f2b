// Package paths centralizes the on-disk layout under ~/.quickhand and the
// validation of task ids before they are spliced into URLs.
package paths

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidTaskID is returned when a task id fails validation.
var ErrInvalidTaskID = errors.New("invalid task id")

const maxTaskIDLen = 64

// MaxTaskIDLen returns the maximum allowed task id length.
func MaxTaskIDLen() int { return maxTaskIDLen }

var taskIDRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,` + strconv.Itoa(maxTaskIDLen) + `}$`)

// ValidateTaskID returns nil for allowed task ids, or ErrInvalidTaskID.
// Rules:
// - Only allow ASCII letters, digits, dot, underscore and dash.
// - Max length is 64.
// - Disallow any ".." substring to avoid traversal attempts.
// - This forbids path separators '/' and '\\' and characters like ':' used in drive letters.
func ValidateTaskID(id string) error {
	if id == "" {
		return fmt.Errorf("empty task id: %w", ErrInvalidTaskID)
	}
	if len(id) > maxTaskIDLen {
		return fmt.Errorf("task id too long: %w", ErrInvalidTaskID)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("task id contains disallowed '..': %w", ErrInvalidTaskID)
	}
	if !taskIDRe.MatchString(id) {
		return fmt.Errorf("task id contains invalid characters: %w", ErrInvalidTaskID)
	}
	return nil
}

// AppDir returns the per-user application directory, <home>/.quickhand.
func AppDir(home string) string {
	return filepath.Join(home, ".quickhand")
}

// ConfigPath returns the config file location, <home>/.quickhand/config.toml.
func ConfigPath(home string) string {
	return filepath.Join(AppDir(home), "config.toml")
}

// DBPath returns the prefs database location, <home>/.quickhand/quickhand.db.
func DBPath(home string) string {
	return filepath.Join(AppDir(home), "quickhand.db")
}
