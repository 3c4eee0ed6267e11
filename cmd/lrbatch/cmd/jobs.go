package cmd

import (
	"fmt"
	"strings"

	"github.com/ab180/lrbatch/test"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func jobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "Lists the runnable jobs",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range test.JobNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

// lookupJob finds a runnable job by its command line name.
func lookupJob(name string) (test.JobFactory, error) {
	factory, ok := test.Jobs[name]
	if !ok {
		return nil, errors.Errorf("unknown job %s. available jobs: %s", name, strings.Join(test.JobNames(), ", "))
	}
	return factory, nil
}
