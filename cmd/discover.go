package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sievedata/sieve-engine/pkg/compat"
	"github.com/sievedata/sieve-engine/pkg/discovery"
	"github.com/sievedata/sieve-engine/pkg/models"
)

var discoverFlags struct {
	kind     string
	strategy string
	mode     string
	output   string
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run dependency discovery against the configured datasource",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx, rootCmd.Version)
		if err != nil {
			return err
		}
		defer rt.close()

		opts, err := discoverOptions(rt)
		if err != nil {
			return err
		}

		res, err := rt.service.Run(ctx, opts)
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return nil
	},
}

// discoverOptions builds run options from configuration with the
// command flags layered on top.
func discoverOptions(rt *runtime) (discovery.Options, error) {
	disc := rt.cfg.Discovery
	if discoverFlags.strategy != "" {
		disc.Strategy = discoverFlags.strategy
	}
	if discoverFlags.mode != "" {
		disc.CompatibilityMode = discoverFlags.mode
	}
	if discoverFlags.output != "" {
		disc.OutputDir = discoverFlags.output
	}

	kindStr := disc.Kind
	if discoverFlags.kind != "" {
		kindStr = discoverFlags.kind
	}
	kind, err := models.ParseDependencyKind(kindStr)
	if err != nil {
		return discovery.Options{}, err
	}
	return discovery.OptionsFromConfig(&disc, kind), nil
}

func printResult(cmd *cobra.Command, res *discovery.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s finished in %s\n", res.RunID, res.Elapsed.Round(1e6))
	fmt.Fprintf(out, "Graph: %d nodes, %d edges; %d candidates accepted\n",
		res.GraphNodes, res.GraphEdges, res.Candidates)

	set := res.Set
	for _, ind := range set.Inclusion {
		fmt.Fprintf(out, "  [ind] %s (support %.3f)\n", ind.Display(), ind.Support)
	}
	for _, fd := range set.Functional {
		fmt.Fprintf(out, "  [fd]  %s (confidence %.3f)\n", fd.Display(), fd.Confidence)
	}
	for _, tgd := range set.TGDs {
		fmt.Fprintf(out, "  [tgd] %s (confidence %.3f)\n", tgd.Display, tgd.Confidence)
	}
	for _, egd := range set.EGDs {
		fmt.Fprintf(out, "  [egd] %s (confidence %.3f)\n", egd.Display, egd.Confidence)
	}
	if set.Len() == 0 {
		fmt.Fprintln(out, "  no dependencies found")
	}
	if res.OutputPath != "" {
		fmt.Fprintf(out, "Results written to %s\n", res.OutputPath)
	}
}

// validModes guards the --mode flag before a run starts.
var validModes = map[string]struct{}{
	string(compat.ModeSameTable):      {},
	string(compat.ModeForeignKey):     {},
	string(compat.ModeType):           {},
	string(compat.ModeContainment):    {},
	string(compat.ModeSampledOverlap): {},
	string(compat.ModeSetOverlap):     {},
	string(compat.ModeName):           {},
	string(compat.ModePattern):        {},
	string(compat.ModeDistribution):   {},
	string(compat.ModeSubset):         {},
	string(compat.ModeTemporal):       {},
	string(compat.ModeEGD):            {},
}

// addDiscoverFlags registers the shared discovery flags on a command.
// Both discover and resume take the same overrides.
func addDiscoverFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&discoverFlags.kind, "kind", "", "dependency kind: fd, ind, tgd or egd")
	cmd.Flags().StringVar(&discoverFlags.strategy, "strategy", "", "search strategy (see 'sieve strategies')")
	cmd.Flags().StringVar(&discoverFlags.mode, "mode", "", "compatibility mode for column-pair screening")
	cmd.Flags().StringVar(&discoverFlags.output, "output", "", "directory for YAML result files")
	cmd.PreRunE = func(*cobra.Command, []string) error {
		if discoverFlags.mode == "" {
			return nil
		}
		if _, ok := validModes[discoverFlags.mode]; !ok {
			return fmt.Errorf("unknown compatibility mode %q", discoverFlags.mode)
		}
		return nil
	}
}

func init() {
	addDiscoverFlags(discoverCmd)
	rootCmd.AddCommand(discoverCmd)
}
