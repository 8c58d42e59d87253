package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LegacyVectorFileName is the filename of the pre-migration vector index,
// carried over from the vector database this service superseded.
const LegacyVectorFileName = "index.faiss"

const doneMarkerName = "faiss_to_qdrant.done"
const lockFileName = ".cutover.lock"

// doneMarker is the JSON contents written to migrations/faiss_to_qdrant.done
// once the legacy cutover has run.
type doneMarker struct {
	Migration    string    `json:"migration"`
	CompletedAt  time.Time `json:"completed_at"`
	VectorCount  int       `json:"vector_count"`
	MetadataRows int       `json:"metadata_rows"`
	ArchivedPath string    `json:"archived_path"`
}

// CutoverLegacyVector moves a legacy vector file into migrations/ and
// writes a completion marker, at most once, guarded by a cross-process
// file lock so two daemon instances racing on the same data directory
// cannot both perform the cutover. No-op if the legacy file is absent, the
// marker already exists, or counts disagree (vectorCount != metadataRows).
func CutoverLegacyVector(dataDir string, vectorCount, metadataRows int) error {
	legacyPath := filepath.Join(dataDir, LegacyVectorFileName)
	if _, err := os.Stat(legacyPath); err != nil {
		return nil
	}

	migrationsDir := filepath.Join(dataDir, "migrations")
	markerPath := filepath.Join(migrationsDir, doneMarkerName)
	if _, err := os.Stat(markerPath); err == nil {
		return nil
	}

	if vectorCount != metadataRows {
		return nil
	}

	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create migrations dir: %w", err)
	}

	lock := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("snapshot: acquire cutover lock: %w", err)
	}
	if !locked {
		return nil
	}
	defer lock.Unlock()

	// Re-check under the lock: another process may have finished the
	// cutover between our first stat and acquiring the lock.
	if _, err := os.Stat(markerPath); err == nil {
		return nil
	}
	if _, err := os.Stat(legacyPath); err != nil {
		return nil
	}

	archivedName := fmt.Sprintf("%s.legacy_%s", LegacyVectorFileName, time.Now().UTC().Format("20060102T150405Z"))
	archivedPath := filepath.Join(migrationsDir, archivedName)

	if err := os.Rename(legacyPath, archivedPath); err != nil {
		return fmt.Errorf("snapshot: archive legacy vector file: %w", err)
	}

	marker := doneMarker{
		Migration:    "faiss_to_qdrant",
		CompletedAt:  time.Now().UTC(),
		VectorCount:  vectorCount,
		MetadataRows: metadataRows,
		ArchivedPath: archivedPath,
	}
	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal cutover marker: %w", err)
	}
	if err := os.WriteFile(markerPath, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write cutover marker: %w", err)
	}

	return nil
}
