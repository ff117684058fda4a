package cmd

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <checkpoint-file>",
	Short: "Resume a checkpointed discovery run",
	Long: `Resume continues a run from a checkpoint file written by a previous
run. The constraint graph is rebuilt from the live schema; only the
search frontier, visited set and evaluation cache are restored. An
unreadable checkpoint falls back to a fresh run.`,
	Args: cobra.ExactArgs(1),
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

		res, err := rt.service.Resume(ctx, args[0], opts)
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return nil
	},
}

func init() {
	addDiscoverFlags(resumeCmd)
	rootCmd.AddCommand(resumeCmd)
}
