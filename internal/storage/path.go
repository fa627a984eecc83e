package storage

import (
	"fmt"
	"path"
	"regexp"
)

const SnapshotContentType = "application/vnd.apache.parquet"

// SnapshotPrefix is the key prefix all session snapshots live under;
// the janitor scans it for orphans.
const SnapshotPrefix = "sessions/"

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildSnapshotKey returns the object key for the Parquet snapshot of
// a session's nth upload. Keys are strictly derived from validated
// components so a crafted session id can never escape the prefix.
func BuildSnapshotKey(sessionID string, upload int) (string, error) {
	if err := validatePathComponent(sessionID, "session id"); err != nil {
		return "", err
	}
	if upload <= 0 {
		return "", fmt.Errorf("upload sequence must be >= 1")
	}
	return path.Join(
		"sessions",
		sessionID,
		fmt.Sprintf("upload-%05d", upload),
		"table.parquet",
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
