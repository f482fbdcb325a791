package api

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Input caps for user-supplied identifiers. Model names reach Badger
// keys and agent goal prompts; snapshot ids reach store lookups.
const (
	maxModelNameLen  = 200
	maxSnapshotIDLen = 100
)

var (
	modelNamePattern  = regexp.MustCompile(`^[a-zA-Z0-9\-_./]+$`)
	snapshotIDPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
)

// validateModelName checks and trims a user-supplied model name.
func validateModelName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("Model name cannot be empty")
	}
	if len(name) > maxModelNameLen {
		return "", fmt.Errorf("Model name too long (max %d characters)", maxModelNameLen)
	}
	if strings.Contains(name, "../") || strings.Contains(name, `..\`) {
		return "", errors.New("Invalid model name: path traversal detected")
	}
	if strings.Contains(name, "--") {
		return "", errors.New("Invalid model name: suspicious pattern detected")
	}
	if !modelNamePattern.MatchString(name) {
		return "", errors.New("Invalid model name format. Only alphanumeric characters, hyphens, underscores, dots, and slashes are allowed.")
	}
	return name, nil
}

// validateSnapshotID checks and trims a user-supplied snapshot id.
func validateSnapshotID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("Snapshot ID cannot be empty")
	}
	if len(id) > maxSnapshotIDLen {
		return "", errors.New("Snapshot ID too long")
	}
	if !snapshotIDPattern.MatchString(id) {
		return "", errors.New("Invalid snapshot ID format")
	}
	return id, nil
}
