package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sievedata/sieve-engine/pkg/graph"
	"github.com/sievedata/sieve-engine/pkg/search"
)

var graphVerbose bool

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build the constraint graph and report its shape without searching",
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

		g, mapper, err := rt.service.BuildGraph(ctx, opts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Constraint graph: %d nodes, %d edges\n", g.NodeCount(), g.EdgeCount())
		if graphVerbose {
			for i := 0; i < g.NodeCount(); i++ {
				id := graph.NodeID(i)
				fmt.Fprintf(out, "  %4d  %s  (degree %d)\n",
					i, mapper.RenderPredicate(g.Node(id)), len(g.Neighbors(id)))
			}
		}
		return nil
	},
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the registered search strategies",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range search.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	addDiscoverFlags(graphCmd)
	graphCmd.Flags().BoolVarP(&graphVerbose, "verbose", "v", false, "list every predicate with its degree")
	rootCmd.AddCommand(graphCmd, strategiesCmd)
}
