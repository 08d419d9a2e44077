package glm

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/neuroglm/physioreport/pkg/errors"
)

// PhysioModel describes which physiological regressor groups were included
// when the design matrix was built. It is loaded read-only and used for a
// single purpose: knowing which contrasts are constructible and which design
// columns they span.
//
// The design lays physiological columns out in a fixed group order:
// cardiac, respiratory, cardiac×respiratory interaction, heart-rate
// variability, respiratory volume per time, movement. Any further columns
// (confounds, constant) follow and are never covered by a physiological
// contrast.
type PhysioModel struct {
	// CardiacOrder is the Fourier expansion order of the cardiac phase
	// regressors. Each order contributes a sin/cos pair (2 columns).
	CardiacOrder int `yaml:"cardiac_order"`

	// RespOrder is the expansion order of the respiratory phase
	// regressors, 2 columns per order.
	RespOrder int `yaml:"resp_order"`

	// InteractionOrder is the expansion order of the multiplicative
	// cardiac×respiratory terms, 4 columns per order.
	InteractionOrder int `yaml:"interaction_order"`

	// HRVLags is the number of lagged heart-rate variability regressors.
	HRVLags int `yaml:"hrv_lags"`

	// RVTLags is the number of lagged respiratory-volume-per-time
	// regressors.
	RVTLags int `yaml:"rvt_lags"`

	// MovementRegressors is the number of realignment parameter columns.
	MovementRegressors int `yaml:"movement_regressors"`
}

// NewPhysioModel returns an empty physiological model: no regressor group
// present, so no physiological contrast is constructible.
func NewPhysioModel() *PhysioModel {
	return &PhysioModel{}
}

// LoadPhysio reads a physiological model document from a YAML file.
func LoadPhysio(path string) (*PhysioModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLoadPhysio, err, "read physio model %s", path)
	}
	var p PhysioModel
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLoadPhysio, err, "parse physio model %s", path)
	}
	return &p, nil
}

// Save writes the physiological model document to a YAML file.
func (p *PhysioModel) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Column widths per group. Cardiac and respiratory phase expansions carry a
// sin/cos pair per order; the interaction carries the four cross terms.
func (p *PhysioModel) cardiacColumns() int     { return 2 * p.CardiacOrder }
func (p *PhysioModel) respColumns() int        { return 2 * p.RespOrder }
func (p *PhysioModel) interactionColumns() int { return 4 * p.InteractionOrder }

// PhysioColumns returns the total number of physiological design columns.
func (p *PhysioModel) PhysioColumns() int {
	return p.cardiacColumns() + p.respColumns() + p.interactionColumns() +
		p.HRVLags + p.RVTLags + p.MovementRegressors
}

// GroupSpan returns the design-column span (start offset and width) covered
// by the named canonical contrast. ok is false when the group was not part
// of the design (zero order / zero regressors), in which case the contrast
// is not constructible.
func (p *PhysioModel) GroupSpan(name string) (start, width int, ok bool) {
	offsets := []struct {
		name  string
		width int
	}{
		{ContrastCardiac, p.cardiacColumns()},
		{ContrastRespiratory, p.respColumns()},
		{ContrastInteraction, p.interactionColumns()},
		{ContrastHRV, p.HRVLags},
		{ContrastRVT, p.RVTLags},
		{ContrastMovement, p.MovementRegressors},
	}

	if name == ContrastAllPhysio {
		w := p.PhysioColumns()
		return 0, w, w > 0
	}

	pos := 0
	for _, g := range offsets {
		if g.name == name {
			return pos, g.width, g.width > 0
		}
		pos += g.width
	}
	return 0, 0, false
}
