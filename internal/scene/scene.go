// Package scene builds the initial particle set: from a scene file, from one
// of the embedded named scenes, or procedurally from a distribution.
//
// Scene files are JSON (or YAML, chosen by extension) body lists:
//
//	{"name": "...", "description": "...", "bodies": [
//	    {"name": "Sun", "position": [0, 0, 0], "velocity": [0, 0, 0],
//	     "mass": 1.989e30, "charge": 0, "color": [255, 204, 51]}]}
//
// charge, color and name are optional. Save writes the same format, so a
// loaded scene saved unchanged loads back to identical bodies.
package scene

import (
	"bytes"
	"embed"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
)

//go:embed presets/*.json
var builtin embed.FS

type File struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Bodies      []BodySpec `json:"bodies" yaml:"bodies"`
}

// BodySpec is one body as written in a scene file. Vectors are slices so
// that a wrong number of components is rejected instead of zero-filled.
type BodySpec struct {
	Name     string           `json:"name,omitempty" yaml:"name,omitempty"`
	Position []float64        `json:"position" yaml:"position,flow"`
	Velocity []float64        `json:"velocity" yaml:"velocity,flow"`
	Mass     float64          `json:"mass" yaml:"mass"`
	Charge   *float64         `json:"charge,omitempty" yaml:"charge,omitempty"`
	Color    *particles.Color `json:"color,omitempty" yaml:"color,omitempty,flow"`
}

type Format int

const (
	JSON Format = iota
	YAML
)

// FormatOf picks the format from a file extension; anything but .yaml/.yml is JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

func Decode(r io.Reader, format Format) (*File, error) {
	var f File
	switch format {
	case YAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, err
		}
	default:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

func Encode(w io.Writer, f *File, format Format) error {
	switch format {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	}
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Decode(bytes.NewReader(data), FormatOf(path))
	if err != nil {
		return nil, physerr.Wrapf(physerr.ErrInvalidParticleInput, "scene %s: %v", path, err)
	}
	return f, nil
}

func Save(path string, f *File) error {
	var buf bytes.Buffer
	if err := Encode(&buf, f, FormatOf(path)); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Builtin returns an embedded scene by name.
func Builtin(name string) (*File, error) {
	data, err := builtin.ReadFile("presets/" + name + ".json")
	if err != nil {
		return nil, physerr.Wrapf(physerr.ErrUnknownOption, "scene %q", name)
	}
	return Decode(bytes.NewReader(data), JSON)
}

// Builtins lists the embedded scene names.
func Builtins() []string {
	entries, err := builtin.ReadDir("presets")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}

// Store validates every body and builds the particle store.
func (f *File) Store() (*particles.Store, error) {
	s := particles.New(len(f.Bodies))
	for i, spec := range f.Bodies {
		b, err := particles.BodyFromSlices(spec.Position, spec.Velocity, spec.Mass)
		if err != nil {
			return nil, physerr.Wrapf(err, "body %d (%s)", i, spec.Name)
		}
		b.Name = spec.Name
		if spec.Charge != nil {
			b.Charge, b.HasCharge = *spec.Charge, true
		}
		if spec.Color != nil {
			b.Color, b.HasColor = *spec.Color, true
		}
		if _, err := s.Add(b); err != nil {
			return nil, physerr.Wrapf(err, "body %d (%s)", i, spec.Name)
		}
	}
	return s, nil
}

// FromStore captures the current state of s as a scene.
func FromStore(name, description string, s *particles.Store) *File {
	f := &File{Name: name, Description: description, Bodies: make([]BodySpec, s.Len())}
	for i := range f.Bodies {
		b := s.Body(i)
		spec := BodySpec{
			Name:     b.Name,
			Position: []float64{b.Position.X, b.Position.Y, b.Position.Z},
			Velocity: []float64{b.Velocity.X, b.Velocity.Y, b.Velocity.Z},
			Mass:     b.Mass,
		}
		if b.HasCharge {
			q := b.Charge
			spec.Charge = &q
		}
		if b.HasColor {
			c := b.Color
			spec.Color = &c
		}
		f.Bodies[i] = spec
	}
	return f
}

// Initialize builds the starting store for cfg: an explicit scene file
// first, then a named embedded scene, then procedural generation.
func Initialize(cfg *config.Config) (*particles.Store, error) {
	in := cfg.Init
	switch {
	case in.File != "":
		f, err := Load(in.File)
		if err != nil {
			return nil, err
		}
		return f.Store()
	case in.Scene != "":
		f, err := Builtin(in.Scene)
		if err != nil {
			return nil, err
		}
		return f.Store()
	}
	return Generate(in)
}
