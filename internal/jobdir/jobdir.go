// Package jobdir manages per-job working directories. A directory is derived
// from the job UUID and holds the job metadata, pipeline inputs and the
// output artifacts.
package jobdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	MetadataFile   = "job_metadata.json"
	ExitStatusFile = "exit_status.json"
)

var ErrNoMetadata = errors.New("no job metadata")

type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ExitStatus records how the external process ended.
type ExitStatus struct {
	ExitCode int       `json:"exit_code"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Stopped  time.Time `json:"stopped"`
}

// Derive returns the working directory of a job. It never touches the file system.
func Derive(root string, id uuid.UUID) string {
	return filepath.Join(root, id.String())
}

// Ensure creates path including parents, existing directory is not an error.
func Ensure(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating job directory %s: %w", path, err)
	}
	return nil
}

func SaveMetadata(path string, md Metadata) error {
	return writeJSON(path, MetadataFile, md)
}

// LoadMetadata returns ErrNoMetadata if the file is missing or corrupted.
func LoadMetadata(path string) (Metadata, error) {
	var md Metadata
	if err := readJSON(path, MetadataFile, &md); err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrNoMetadata, err)
	}
	return md, nil
}

func SaveExitStatus(path string, st ExitStatus) error {
	return writeJSON(path, ExitStatusFile, st)
}

// LoadExitStatus returns os.ErrNotExist while the process has not finished yet.
func LoadExitStatus(path string) (ExitStatus, error) {
	var st ExitStatus
	if err := readJSON(path, ExitStatusFile, &st); err != nil {
		return ExitStatus{}, err
	}
	return st, nil
}

// ReadFile reads a file from the job directory. The name is resolved inside dir,
// so it can't escape it.
func ReadFile(dir, name string) ([]byte, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeJSON(dir, name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func readJSON(dir, name string, v any) error {
	b, err := ReadFile(dir, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Join(dir, name), err)
	}
	return nil
}
