// Package storage persists finished runs under a base directory, one
// directory per run:
//
//	<base>/<run id>/metadata.json   RunMetadata
//	<base>/<run id>/config.yaml     the configuration the run used
//	<base>/<run id>/stats.csv       one row per tick
//	<base>/<run id>/final.json      final state as a scene file
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/scene"
	"github.com/san-kum/nbodysim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	statsFile    = "stats.csv"
	finalFile    = "final.json"
)

var ErrRunNotFound = errors.New("run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Integrator  string             `json:"integrator"`
	Interaction string             `json:"interaction_model"`
	Forces      []string           `json:"forces"`
	Dt          float64            `json:"dt"`
	Steps       int                `json:"steps"`
	Particles   int                `json:"particles"`
	Seed        int64              `json:"seed"`
	Elapsed     float64            `json:"elapsed_seconds"`
	Error       string             `json:"error,omitempty"`
	Metrics     map[string]float64 `json:"metrics"`

	// Config is written to config.yaml rather than the metadata document.
	Config *config.Config `json:"-"`
}

// NewMetadata fills the descriptive fields from cfg and res.
func NewMetadata(name string, cfg *config.Config, res *sim.Result, runErr error) RunMetadata {
	meta := RunMetadata{
		Name:        name,
		Integrator:  cfg.Integrator.String(),
		Interaction: cfg.Interaction.String(),
		Forces:      cfg.Forces.Enabled(),
		Dt:          cfg.Dt,
		Seed:        cfg.Init.Seed,
		Config:      cfg,
	}
	if res != nil {
		meta.Steps = res.Steps
		meta.Elapsed = res.Elapsed.Seconds()
		meta.Metrics = res.Metrics
		if res.Final.Store != nil {
			meta.Particles = res.Final.Store.Len()
		}
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}
	return meta
}

// Row is one line of stats.csv.
type Row struct {
	Step           uint64  `json:"step"`
	Time           float64 `json:"time"`
	Particles      int     `json:"particles"`
	Energy         float64 `json:"energy"`
	HasEnergy      bool    `json:"has_energy"`
	ElapsedMicros  int64   `json:"elapsed_us"`
	TreeNodes      int     `json:"tree_nodes"`
	TreeDepth      int     `json:"tree_depth"`
	DirectFallback bool    `json:"direct_fallback"`
}

func RowsFromStats(stats []sim.Stats) []Row {
	rows := make([]Row, len(stats))
	for i, st := range stats {
		rows[i] = Row{
			Step:           st.Step,
			Time:           st.Time,
			Particles:      st.Particles,
			Energy:         st.Energy,
			HasEnergy:      st.HasEnergy,
			ElapsedMicros:  st.Elapsed.Microseconds(),
			TreeNodes:      st.TreeNodes,
			TreeDepth:      st.TreeDepth,
			DirectFallback: st.DirectFallback,
		}
	}
	return rows
}

var statsHeader = []string{"step", "time", "particles", "energy", "elapsed_us", "tree_nodes", "tree_depth", "direct_fallback"}

// Save writes a new run directory and returns its id. final may be nil. A
// failed save removes the directory it created.
func (s *Store) Save(meta RunMetadata, rows []Row, final *particles.Store) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runID, runDir, err := s.newRunDir(meta.Name, meta.Timestamp)
	if err != nil {
		return "", err
	}
	meta.ID = runID

	if err := writeRun(runDir, meta, rows, final); err != nil {
		os.RemoveAll(runDir)
		return "", err
	}
	return runID, nil
}

func writeRun(runDir string, meta RunMetadata, rows []Row, final *particles.Store) error {
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return err
	}
	if meta.Config != nil {
		if err := config.Save(filepath.Join(runDir, configFile), meta.Config); err != nil {
			return err
		}
	}
	if err := writeStats(filepath.Join(runDir, statsFile), rows); err != nil {
		return err
	}
	if final != nil {
		return scene.Save(filepath.Join(runDir, finalFile), scene.FromStore(meta.Name, "final state of "+meta.ID, final))
	}
	return nil
}

// newRunDir creates <name>_<timestamp>, adding a counter when a run with the
// same name was saved in the same second.
func (s *Store) newRunDir(name string, ts time.Time) (string, string, error) {
	if name == "" {
		name = "run"
	}
	base := fmt.Sprintf("%s_%s", name, ts.Format("20060102-150405"))
	for i := 0; ; i++ {
		id := base
		if i > 0 {
			id = fmt.Sprintf("%s-%d", base, i)
		}
		dir := filepath.Join(s.baseDir, id)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return id, dir, nil
		}
		if !os.IsExist(err) {
			return "", "", err
		}
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func writeStats(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeStats(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeStats(out io.Writer, rows []Row) error {
	w := csv.NewWriter(out)
	if err := w.Write(statsHeader); err != nil {
		return err
	}
	for _, r := range rows {
		energy := ""
		if r.HasEnergy {
			energy = formatFloat(r.Energy)
		}
		rec := []string{
			strconv.FormatUint(r.Step, 10),
			formatFloat(r.Time),
			strconv.Itoa(r.Particles),
			energy,
			strconv.FormatInt(r.ElapsedMicros, 10),
			strconv.Itoa(r.TreeNodes),
			strconv.Itoa(r.TreeDepth),
			strconv.FormatBool(r.DirectFallback),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the saved runs, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.readMetadata(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) runPath(runID, file string) (string, error) {
	if runID == "" || filepath.Base(runID) != runID {
		return "", fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}
	return filepath.Join(s.baseDir, runID, file), nil
}

func (s *Store) readMetadata(runID string) (*RunMetadata, error) {
	path, err := s.runPath(runID, metadataFile)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// Load returns the metadata of runID, with Config filled in when the run
// saved one.
func (s *Store) Load(runID string) (*RunMetadata, error) {
	meta, err := s.readMetadata(runID)
	if err != nil {
		return nil, err
	}
	path, _ := s.runPath(runID, configFile)
	if _, err := os.Stat(path); err == nil {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		meta.Config = cfg
	}
	return meta, nil
}

func (s *Store) LoadStats(runID string) ([]Row, error) {
	path, err := s.runPath(runID, statsFile)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer f.Close()
	return readStats(f)
}

func readStats(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(statsHeader)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Row{}, nil
	}

	rows := make([]Row, 0, len(records)-1)
	for n, rec := range records[1:] {
		var (
			row Row
			p   parser
		)
		row.Step = p.uint(rec[0])
		row.Time = p.float(rec[1])
		row.Particles = p.int(rec[2])
		if rec[3] != "" {
			row.Energy, row.HasEnergy = p.float(rec[3]), true
		}
		row.ElapsedMicros = int64(p.int(rec[4]))
		row.TreeNodes = p.int(rec[5])
		row.TreeDepth = p.int(rec[6])
		row.DirectFallback = p.bool(rec[7])
		if p.err != nil {
			return nil, fmt.Errorf("stats row %d: %w", n+1, p.err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parser keeps the first conversion error.
type parser struct{ err error }

func (p *parser) keep(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *parser) float(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	p.keep(err)
	return v
}

func (p *parser) int(s string) int {
	v, err := strconv.Atoi(s)
	p.keep(err)
	return v
}

func (p *parser) uint(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	p.keep(err)
	return v
}

func (p *parser) bool(s string) bool {
	v, err := strconv.ParseBool(s)
	p.keep(err)
	return v
}

// LoadFinal rebuilds the final particle state of runID.
func (s *Store) LoadFinal(runID string) (*particles.Store, error) {
	path, err := s.runPath(runID, finalFile)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s has no final state", ErrRunNotFound, runID)
	}
	f, err := scene.Load(path)
	if err != nil {
		return nil, err
	}
	return f.Store()
}

// FinalPath is the scene file holding the final state of runID; it can be
// fed back as init.file.
func (s *Store) FinalPath(runID string) string {
	return filepath.Join(s.baseDir, runID, finalFile)
}
