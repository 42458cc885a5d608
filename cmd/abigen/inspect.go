package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alexhholmes/abilayout/internal/driver"
)

var (
	inspectOpts = struct {
		format string
	}{}

	inspectCmd = &cobra.Command{
		Use:   "inspect [descriptors...]",
		Short: "Print reconstructed layouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := baseOptions(args)
			if err != nil {
				return err
			}
			s, err := driver.Load(cmd.Context(), opts)
			if err != nil {
				return err
			}

			views := s.Describe()
			w := cmd.OutOrStdout()
			switch inspectOpts.format {
			case "text":
				printTypes(w, views)
				return nil
			case "yaml":
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				if err := enc.Encode(views); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("unknown format %q", inspectOpts.format)
			}
		},
	}
)

func init() {
	inspectCmd.Flags().StringVarP(&inspectOpts.format, "format", "f", "text", "output format (=text, =yaml)")
}
