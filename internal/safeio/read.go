package safeio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// relUnder returns targetPath relative to rootDir, failing if it escapes.
func relUnder(rootDir, targetPath string) (string, string, error) {
	rootAbs, err := filepath.Abs(rootDir)
	if err != nil {
		return "", "", fmt.Errorf("resolve root path: %w", err)
	}
	targetAbs, err := filepath.Abs(targetPath)
	if err != nil {
		return "", "", fmt.Errorf("resolve target path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", "", fmt.Errorf("compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", "", fmt.Errorf("path escapes root: %s", targetPath)
	}
	return rootAbs, filepath.Clean(rel), nil
}

func IsUnder(rootDir, targetPath string) bool {
	_, _, err := relUnder(rootDir, targetPath)
	return err == nil
}

// RelID is the slash-separated, root-relative id used for files in a build.
func RelID(rootDir, targetPath string) (string, error) {
	_, rel, err := relUnder(rootDir, targetPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// ReadFileUnder reads targetPath only if it resolves under rootDir.
func ReadFileUnder(rootDir, targetPath string) ([]byte, error) {
	rootAbs, rel, err := relUnder(rootDir, targetPath)
	if err != nil {
		return nil, err
	}

	root, err := os.OpenRoot(rootAbs)
	if err != nil {
		return nil, fmt.Errorf("open root: %w", err)
	}
	defer root.Close()

	file, err := root.Open(rel)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

// ReadFile reads the exact targetPath by opening its parent directory as a root.
func ReadFile(targetPath string) ([]byte, error) {
	targetAbs, err := filepath.Abs(targetPath)
	if err != nil {
		return nil, fmt.Errorf("resolve target path: %w", err)
	}

	root, err := os.OpenRoot(filepath.Dir(targetAbs))
	if err != nil {
		return nil, fmt.Errorf("open parent root: %w", err)
	}
	defer root.Close()

	file, err := root.Open(filepath.Base(targetAbs))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

// WriteFileUnder writes data to targetPath, creating parent directories,
// only if targetPath resolves under rootDir.
func WriteFileUnder(rootDir, targetPath string, data []byte) error {
	rootAbs, rel, err := relUnder(rootDir, targetPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(rootAbs, filepath.Dir(rel)), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	root, err := os.OpenRoot(rootAbs)
	if err != nil {
		return fmt.Errorf("open root: %w", err)
	}
	defer root.Close()

	file, err := root.OpenFile(rel, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
