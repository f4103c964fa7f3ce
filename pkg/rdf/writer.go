package rdf

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"

	"geoetl/pkg/models"
)

// ArtifactPath returns the deterministic location of one batch artifact:
// <base>/<execution_id>/<image_id>/batch_NNNNNN.ttl[.gz].
func ArtifactPath(baseDir string, key models.UnitKey, seq int, compress bool) string {
	name := fmt.Sprintf("batch_%06d.ttl", seq)
	if compress {
		name += ".gz"
	}
	return filepath.Join(baseDir, key.ExecutionID, key.ImageID, name)
}

// WriteArtifact serializes the graph to path, optionally gzip-compressed.
// The file is written to a temporary sibling, synced, and renamed into
// place, so a crash mid-write never leaves a partial artifact at the final
// path and retries safely overwrite earlier attempts.
func WriteArtifact(path string, g *Graph, compress bool, level int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary artifact: %w", err)
	}

	writeErr := func() error {
		if compress {
			gz, err := gzip.NewWriterLevel(file, level)
			if err != nil {
				return err
			}
			if err := g.WriteTurtle(gz); err != nil {
				gz.Close()
				return err
			}
			return gz.Close()
		}
		return g.WriteTurtle(file)
	}()
	if writeErr != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to serialize artifact: %w", writeErr)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename artifact into place: %w", err)
	}
	return nil
}
