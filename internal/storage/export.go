package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/nbodysim/internal/scene"
)

// ExportData is the single-document form of a saved run.
type ExportData struct {
	Run   RunMetadata `json:"run"`
	Stats []Row       `json:"stats"`
	Final *scene.File `json:"final,omitempty"`
}

// Export writes runID as one indented JSON document.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	rows, err := s.LoadStats(runID)
	if err != nil {
		return err
	}
	data := ExportData{Run: *meta, Stats: rows}
	if final, err := s.LoadFinal(runID); err == nil {
		data.Final = scene.FromStore(meta.Name, "", final)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
