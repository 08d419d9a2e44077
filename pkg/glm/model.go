// Package glm holds the data model for a fitted general linear model and the
// registry of physiological-noise contrasts defined over it.
//
// A FittedModel is the persisted output of an external estimation step: the
// design matrix, degrees of freedom, paths to the estimated beta and residual
// volumes, and the list of contrasts defined so far. This package never
// re-estimates anything; it only reads the model document, grows its contrast
// list, and answers name→index lookups.
package glm

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/neuroglm/physioreport/pkg/errors"
)

// Contrast is a named linear combination of design-matrix columns.
// A t-contrast has a single weight row; an F-contrast has one row per
// dimension of the tested subspace.
type Contrast struct {
	Name    string      `yaml:"name"`
	Kind    string      `yaml:"kind"` // "t" or "F"
	Weights [][]float64 `yaml:"weights"`
}

// Rows returns the number of weight rows (the rank of an F-contrast).
func (c *Contrast) Rows() int {
	return len(c.Weights)
}

// Matrix returns the contrast weights as a dense matrix.
// Returns nil for a contrast with no weights.
func (c *Contrast) Matrix() *mat.Dense {
	if len(c.Weights) == 0 || len(c.Weights[0]) == 0 {
		return nil
	}
	rows, cols := len(c.Weights), len(c.Weights[0])
	m := mat.NewDense(rows, cols, nil)
	for i, row := range c.Weights {
		for j, w := range row {
			m.Set(i, j, w)
		}
	}
	return m
}

// FittedModel is the persisted result of GLM estimation.
//
// The model document is read-only for the report pipeline except for contrast
// list growth: synthesized contrasts are appended in memory and looked up by
// name for the remainder of the run.
type FittedModel struct {
	// Design is the design matrix, rows = scans, columns = regressors.
	Design [][]float64 `yaml:"design"`

	// Columns names each design-matrix column.
	Columns []string `yaml:"columns"`

	// ErrorDF is the residual degrees of freedom of the fit.
	ErrorDF float64 `yaml:"error_df"`

	// BetaPath points to the 4-D beta volume written by estimation,
	// one frame per design column. Relative paths are resolved against
	// the model document's directory.
	BetaPath string `yaml:"beta_path"`

	// ResMSPath points to the residual mean square volume.
	ResMSPath string `yaml:"resms_path"`

	// Contrasts is the ordered contrast list. Indices into this slice are
	// the contrast indices used throughout the pipeline.
	Contrasts []Contrast `yaml:"contrasts"`
}

// LoadModel reads a fitted model document from a YAML file.
func LoadModel(path string) (*FittedModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLoadModel, err, "read model %s", path)
	}
	var m FittedModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLoadModel, err, "parse model %s", path)
	}
	if err := m.check(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLoadModel, err, "invalid model %s", path)
	}
	return &m, nil
}

// Save writes the model document to a YAML file.
func (m *FittedModel) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// check validates internal consistency of a loaded model.
func (m *FittedModel) check() error {
	cols := m.NumColumns()
	for i, row := range m.Design {
		if len(row) != cols {
			return fmt.Errorf("design row %d has %d columns, want %d", i, len(row), cols)
		}
	}
	if len(m.Columns) != 0 && len(m.Columns) != cols {
		return fmt.Errorf("column names (%d) do not match design columns (%d)", len(m.Columns), cols)
	}
	for _, c := range m.Contrasts {
		for _, row := range c.Weights {
			if len(row) != cols {
				return fmt.Errorf("contrast %q weight row has %d columns, want %d", c.Name, len(row), cols)
			}
		}
	}
	return nil
}

// NumColumns returns the number of design-matrix columns.
func (m *FittedModel) NumColumns() int {
	if len(m.Design) == 0 {
		return 0
	}
	return len(m.Design[0])
}

// NumScans returns the number of design-matrix rows.
func (m *FittedModel) NumScans() int {
	return len(m.Design)
}

// FindContrast resolves a contrast name to an index in the contrast list.
// The boolean reports whether the name exists; a missing name is not an
// error, callers decide whether to skip or synthesize.
func (m *FittedModel) FindContrast(name string) (int, bool) {
	for i := range m.Contrasts {
		if m.Contrasts[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

// AddContrast appends a contrast and returns its index. If a contrast with
// the same name already exists, the existing index is returned and the list
// is left unchanged.
func (m *FittedModel) AddContrast(c Contrast) int {
	if i, ok := m.FindContrast(c.Name); ok {
		return i
	}
	m.Contrasts = append(m.Contrasts, c)
	return len(m.Contrasts) - 1
}

// DesignMatrix returns the design as a dense matrix.
// Returns nil for an empty design.
func (m *FittedModel) DesignMatrix() *mat.Dense {
	rows, cols := m.NumScans(), m.NumColumns()
	if rows == 0 || cols == 0 {
		return nil
	}
	d := mat.NewDense(rows, cols, nil)
	for i, row := range m.Design {
		for j, v := range row {
			d.Set(i, j, v)
		}
	}
	return d
}

// ContrastCovariance computes C (X'X)⁻¹ C' for a contrast weight matrix C.
// This is the scaling term of the contrast statistic; the renderer divides
// by it (t) or inverts it (F) per voxel.
func (m *FittedModel) ContrastCovariance(c *Contrast) (*mat.Dense, error) {
	x := m.DesignMatrix()
	if x == nil {
		return nil, fmt.Errorf("model has no design matrix")
	}
	cm := c.Matrix()
	if cm == nil {
		return nil, fmt.Errorf("contrast %q has no weights", c.Name)
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("design matrix is rank deficient: %w", err)
	}

	var ci mat.Dense
	ci.Mul(cm, &inv)
	var out mat.Dense
	out.Mul(&ci, cm.T())
	return &out, nil
}
