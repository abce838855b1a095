package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/potentials"
	"github.com/san-kum/revsim/internal/sim"
)

const (
	metadataFile  = "metadata.json"
	systemFile    = "system.json"
	energiesFile  = "energies.csv"
	duDlFile      = "du_dl.csv"
	gradientsFile = "gradients.json"
	framesFile    = "frames.json"
)

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
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Precision string             `json:"precision"`
	Seed      int64              `json:"seed"`
	Dt        float64            `json:"dt"`
	Steps     int                `json:"steps"`
	Atoms     int                `json:"atoms"`
	Terms     []string           `json:"terms"`
	Frames    int                `json:"frames"`
	Backward  bool               `json:"backward"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// Run is everything produced by one local forward (and optional
// backward) pass.
type Run struct {
	Name      string
	System    sim.System
	Precision dynamo.Precision
	Result    *sim.ForwardResult
	Grads     []potentials.ParamGrad
	Metrics   map[string]float64
}

// Series is the per-step data of a stored run.
type Series struct {
	Terms        []string
	Lambdas      []float64
	Energies     []float64
	TermEnergies [][]float64
	DuDl         [][]float64
}

// Save archives run under a new time-ordered ID and returns the ID.
func (s *Store) Save(run Run) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	runID := id.String()
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	sys := run.System
	labels := make([]string, len(sys.Terms))
	for i, t := range sys.Terms {
		labels[i] = t.Label()
	}
	meta := RunMetadata{
		ID:        runID,
		Name:      run.Name,
		Timestamp: time.Now(),
		Precision: run.Precision.String(),
		Seed:      sys.Integrator.Seed,
		Dt:        sys.Integrator.Dt,
		Steps:     sys.Steps(),
		Atoms:     sys.NumAtoms(),
		Terms:     labels,
		Frames:    len(run.Result.Frames),
		Backward:  run.Grads != nil,
		Metrics:   run.Metrics,
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, systemFile), sys); err != nil {
		return "", err
	}
	lambdas := sys.Integrator.Lambdas
	energyCols := append([][]float64{run.Result.Energies}, run.Result.TermEnergies...)
	if err := writeSeries(filepath.Join(runDir, energiesFile), append([]string{"total"}, labels...), lambdas, energyCols); err != nil {
		return "", err
	}
	if err := writeSeries(filepath.Join(runDir, duDlFile), labels, lambdas, run.Result.DuDls); err != nil {
		return "", err
	}
	if len(run.Result.Frames) > 0 {
		if err := writeJSON(filepath.Join(runDir, framesFile), run.Result.Frames); err != nil {
			return "", err
		}
	}
	if run.Grads != nil {
		if err := writeJSON(filepath.Join(runDir, gradientsFile), run.Grads); err != nil {
			return "", err
		}
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ExportJSON(f, v)
}

// ExportJSON writes v as indented JSON.
func ExportJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeSeries writes one row per step. A nil column is written as zeros.
func writeSeries(path string, names []string, lambdas []float64, cols [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"step", "lambda"}, names...)
	if err := w.Write(header); err != nil {
		return err
	}
	for t, lam := range lambdas {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(t), formatFloat(lam))
		for c := range names {
			v := 0.0
			if c < len(cols) && t < len(cols[c]) {
				v = cols[c][t]
			}
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

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
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID < runs[j].ID })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := readJSON(filepath.Join(s.baseDir, runID, metadataFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadSystem(runID string) (sim.System, error) {
	var sys sim.System
	err := readJSON(filepath.Join(s.baseDir, runID, systemFile), &sys)
	return sys, err
}

// LoadGradients returns the stored gradients, or nil if the run had no
// backward pass.
func (s *Store) LoadGradients(runID string) ([]potentials.ParamGrad, error) {
	var grads []potentials.ParamGrad
	err := readJSON(filepath.Join(s.baseDir, runID, gradientsFile), &grads)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return grads, err
}

// LoadFrames returns the archived frames, or nil if none were kept.
func (s *Store) LoadFrames(runID string) ([][][3]float64, error) {
	var frames [][][3]float64
	err := readJSON(filepath.Join(s.baseDir, runID, framesFile), &frames)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return frames, err
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Store) LoadSeries(runID string) (*Series, error) {
	lambdas, names, energy, err := readSeries(filepath.Join(s.baseDir, runID, energiesFile))
	if err != nil {
		return nil, err
	}
	_, terms, duDl, err := readSeries(filepath.Join(s.baseDir, runID, duDlFile))
	if err != nil {
		return nil, err
	}
	if len(names) == 0 || names[0] != "total" {
		return nil, fmt.Errorf("%s: missing total energy column", energiesFile)
	}
	return &Series{
		Terms:        terms,
		Lambdas:      lambdas,
		Energies:     energy[0],
		TermEnergies: energy[1:],
		DuDl:         duDl,
	}, nil
}

func readSeries(path string) (lambdas []float64, names []string, cols [][]float64, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) == 0 || len(records[0]) < 2 {
		return nil, nil, nil, fmt.Errorf("%s: missing header", path)
	}

	names = records[0][2:]
	cols = make([][]float64, len(names))
	for i, record := range records[1:] {
		lam, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		lambdas = append(lambdas, lam)
		for c := range names {
			v, err := strconv.ParseFloat(record[c+2], 64)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
			}
			cols[c] = append(cols[c], v)
		}
	}
	return lambdas, names, cols, nil
}
