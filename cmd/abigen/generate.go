package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/alexhholmes/abilayout/internal/driver"
)

var (
	generateOpts = struct {
		outDir        string
		pkg           string
		glueFilename  string
		glueIncludes  []string
		probeFilename string
		mirror        bool
		noUnsafe      bool
		verify        bool
		jobs          int
	}{}

	generateCmd = &cobra.Command{
		Use:   "generate [descriptors...]",
		Short: "Generate Go accessors for described types",
		Long: `Generate one Go file per described type, plus the C glue and the probe
program when requested. Descriptors are GAPI XML files, Go files carrying
@native annotations, or Go package patterns.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := baseOptions(args)
			if err != nil {
				return err
			}
			if len(opts.Generate) == 0 {
				return fmt.Errorf("no descriptors given, use --generate")
			}
			opts.OutDir = generateOpts.outDir
			opts.Package = generateOpts.pkg
			opts.GlueFilename = generateOpts.glueFilename
			opts.GlueIncludes = generateOpts.glueIncludes
			opts.ProbeFilename = generateOpts.probeFilename
			opts.Mirror = generateOpts.mirror
			opts.AllowUnsafe = !generateOpts.noUnsafe
			opts.Verify = generateOpts.verify
			opts.Jobs = generateOpts.jobs

			report, err := driver.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
)

func init() {
	generateCmd.Flags().StringVarP(&generateOpts.outDir, "outdir", "o", ".", "output directory of the Go files")
	generateCmd.Flags().StringVarP(&generateOpts.pkg, "package", "p", "", "Go package name, defaults to the output directory name")
	generateCmd.Flags().StringVar(&generateOpts.glueFilename, "glue-filename", "", "write C glue to this file; accessors that need it are skipped without it")
	generateCmd.Flags().StringSliceVar(&generateOpts.glueIncludes, "glue-includes", nil, "native headers included by the glue and probe sources")
	generateCmd.Flags().StringVar(&generateOpts.probeFilename, "probe-filename", "", "write the probe program to this file")
	generateCmd.Flags().BoolVar(&generateOpts.mirror, "mirror", true, "declare layout-compatible mirror structs")
	generateCmd.Flags().BoolVar(&generateOpts.noUnsafe, "no-unsafe", false, "never access fields through reconstructed offsets")
	generateCmd.Flags().BoolVar(&generateOpts.verify, "verify", false, "emit Verify<Type>ABI functions, requires --glue-includes")
	generateCmd.Flags().IntVarP(&generateOpts.jobs, "jobs", "j", runtime.NumCPU(), "number of files rendered concurrently")
}
