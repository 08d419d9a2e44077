package glm

// Canonical physiological contrast names, in the order they are reported.
const (
	ContrastAllPhysio   = "All Physiological Regressors"
	ContrastCardiac     = "Cardiac Regressors"
	ContrastRespiratory = "Respiratory Regressors"
	ContrastInteraction = "Cardiac X Respiratory Interaction"
	ContrastHRV         = "Heart Rate Variability"
	ContrastRVT         = "Respiratory Volume per Time"
	ContrastMovement    = "Movement Regressors"
)

// CanonicalContrasts returns the canonical contrast name list in report order.
func CanonicalContrasts() []string {
	return []string{
		ContrastAllPhysio,
		ContrastCardiac,
		ContrastRespiratory,
		ContrastInteraction,
		ContrastHRV,
		ContrastRVT,
		ContrastMovement,
	}
}

// EnsureContrasts synthesizes every requested contrast that is missing from
// the model's contrast list and constructible from the physiological model.
// It returns the names that were synthesized.
//
// A name that is already present is left untouched, so calling this twice
// with the same inputs leaves the contrast list identical after the second
// call. A name whose regressor group is absent (zero order) is silently left
// unresolved; a later FindContrast simply reports not-found and the caller
// skips it. Synthesis never fails hard.
func EnsureContrasts(model *FittedModel, physio *PhysioModel, names []string) []string {
	if physio == nil {
		physio = NewPhysioModel()
	}

	var added []string
	for _, name := range names {
		if _, ok := model.FindContrast(name); ok {
			continue
		}
		start, width, ok := physio.GroupSpan(name)
		if !ok {
			continue
		}
		if start+width > model.NumColumns() {
			// The design does not carry the columns this group claims;
			// leave the name unresolved rather than fabricate weights.
			continue
		}
		model.AddContrast(eyeContrast(name, model.NumColumns(), start, width))
		added = append(added, name)
	}
	return added
}

// eyeContrast builds an F-contrast with an identity block over the given
// column span: one weight row per spanned column.
func eyeContrast(name string, cols, start, width int) Contrast {
	weights := make([][]float64, width)
	for i := range weights {
		row := make([]float64, cols)
		row[start+i] = 1
		weights[i] = row
	}
	return Contrast{Name: name, Kind: "F", Weights: weights}
}
