package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// remediationDir groups all remediation clones under one subdirectory
// of the workspace root so the sweeper never touches unrelated files.
const remediationDir = "remediation"

// Resolve returns the deterministic workspace path for a remediation.
// The same repo name and identifying parts always map to the same path,
// so a follow-up request lands in the clone its generate run produced.
func Resolve(root, repoName string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	name := repoName + "-" + hex.EncodeToString(sum[:])[:16]
	return filepath.Join(root, remediationDir, name)
}

// Touch bumps the workspace's mtime so the TTL sweeper sees it as
// fresh. Called at the start of each remediation phase.
func Touch(path string) error {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		return fmt.Errorf("touching workspace %s: %w", path, err)
	}
	return nil
}

// Exists reports whether the workspace directory is present on disk.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// SweepExpired removes workspace directories whose mtime is older than
// ttl. It inspects the root's immediate subdirectories and one nested
// level below them, matching the root/remediation/<clone> layout.
// Concurrent deletion by another sweep or a finished remediation is
// tolerated. Returns the number of directories removed.
func SweepExpired(root string, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)

	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading workspace root: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())

		subs, err := os.ReadDir(dir)
		if err != nil {
			// The directory may have vanished between ReadDir calls.
			continue
		}
		for _, s := range subs {
			if !s.IsDir() {
				continue
			}
			sub := filepath.Join(dir, s.Name())
			if !expiredBefore(sub, cutoff) {
				continue
			}
			if err := os.RemoveAll(sub); err != nil {
				slog.Warn("Failed to remove expired workspace", "path", sub, "error", err)
				continue
			}
			slog.Info("Removed expired workspace", "path", sub)
			removed++
		}

		// Remove the container itself only once it is empty and stale.
		if expiredBefore(dir, cutoff) && isEmptyDir(dir) {
			if err := os.Remove(dir); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func expiredBefore(path string, cutoff time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().Before(cutoff)
}

func isEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) == 0
}
