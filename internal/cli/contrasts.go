package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neuroglm/physioreport/pkg/glm"
	"github.com/neuroglm/physioreport/pkg/pipeline"
)

// contrastsOpts holds the command-line flags for the contrasts command.
type contrastsOpts struct {
	model  string // fitted-model document path
	physio string // physiological-model document path
}

// newContrastsCmd creates the contrasts command, which lists the contrasts a
// fitted model carries and which canonical physiological contrasts could be
// synthesized from its regressor groups.
func newContrastsCmd() *cobra.Command {
	var opts contrastsOpts

	cmd := &cobra.Command{
		Use:   "contrasts",
		Short: "List model contrasts and constructible physiological contrasts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContrasts(&opts)
		},
	}

	cmd.Flags().StringVarP(&opts.model, "model", "m", pipeline.DefaultModelPath, "fitted-model document")
	cmd.Flags().StringVar(&opts.physio, "physio", pipeline.DefaultPhysioPath, "physiological-model document")

	return cmd
}

// runContrasts loads the model and prints its contrast inventory. Synthesis
// happens on the in-memory copy only; nothing is written back.
func runContrasts(opts *contrastsOpts) error {
	model, err := glm.LoadModel(opts.model)
	if err != nil {
		return err
	}

	physio := glm.NewPhysioModel()
	if _, err := os.Stat(opts.physio); err == nil {
		physio, err = glm.LoadPhysio(opts.physio)
		if err != nil {
			return err
		}
	}

	fmt.Println(StyleTitle.Render("Model contrasts"))
	if len(model.Contrasts) == 0 {
		printDetail("none")
	}
	for i, c := range model.Contrasts {
		printKeyValue(fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%s (%s-contrast, %d rows)", c.Name, c.Kind, c.Rows()))
	}

	existing := len(model.Contrasts)
	added := glm.EnsureContrasts(model, physio, glm.CanonicalContrasts())

	printNewline()
	fmt.Println(StyleTitle.Render("Canonical physiological contrasts"))
	for _, name := range glm.CanonicalContrasts() {
		idx, ok := model.FindContrast(name)
		switch {
		case ok && idx < existing:
			printKeyValue("present", name)
		case ok:
			printKeyValue("available", name)
		default:
			printKeyValue("missing", StyleDim.Render(name+" (regressor group not in design)"))
		}
	}
	if len(added) > 0 {
		printNewline()
		printInfo("%d contrast(s) would be synthesized by a report run", len(added))
	}
	return nil
}
