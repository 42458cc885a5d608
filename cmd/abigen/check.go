package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexhholmes/abilayout/internal/driver"
	"github.com/alexhholmes/abilayout/internal/glue"
)

var checkCmd = &cobra.Command{
	Use:   "check [descriptors...]",
	Short: "Compare reconstructed layouts with probe results",
	Long: `Compare every reconstructed size, alignment and offset with the values
printed by the compiled probe program. Exits non-zero on any mismatch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loadOpts.probeResults == "" {
			return errors.New("--probe-results is required")
		}
		opts, err := baseOptions(args)
		if err != nil {
			return err
		}
		s, err := driver.Load(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if s.Table == nil {
			return fmt.Errorf("%s: no probe results", loadOpts.probeResults)
		}

		mismatches := glue.Check(s.Table, s.Plans())
		printMismatches(cmd.OutOrStdout(), len(s.Plans()), mismatches)
		if len(mismatches) > 0 {
			return fmt.Errorf("%d mismatches", len(mismatches))
		}
		return nil
	},
}
