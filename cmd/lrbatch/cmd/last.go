package cmd

import (
	"io"

	"github.com/ab180/lrbatch/job"
	"github.com/ab180/lrbatch/repository"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func lastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last <job> [key=value...]",
		Short: "Shows the last execution of a job instance",
		Long: "Prints the last execution of the job instance identified by the parameters, with its steps.\n" +
			"The memory store only knows the runs of the current process, so use a persistent store such as etcd.",
		Example: `  lrbatch last metrics --store etcd
  lrbatch last metrics run.id=3 --store etcd`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := lookupJob(args[0])
			if err != nil {
				return err
			}
			j, err := factory(io.Discard)
			if err != nil {
				return errors.Wrap(err, "build job")
			}
			params, err := parseParameters(args[1:])
			if err != nil {
				return err
			}
			crd, err := openStore()
			if err != nil {
				return err
			}
			defer crd.Close()

			e, err := repository.New(crd).LastExecution(cmd.Context(), j.Name(), params)
			if err != nil {
				return errors.Wrapf(err, "find last execution of %s", args[0])
			}
			if e == nil {
				return errors.Errorf("%s%s has never been executed", args[0], params)
			}

			enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summarize(e))
		},
	}
}

type executionSummary struct {
	ID         int64                `json:"id"`
	JobName    string               `json:"jobName"`
	Parameters job.Parameters       `json:"parameters"`
	Status     job.BatchStatus      `json:"status"`
	ExitStatus job.ExitStatus       `json:"exitStatus"`
	Elapsed    string               `json:"elapsed"`
	Steps      []*job.StepExecution `json:"steps"`
	Failures   []string             `json:"failures,omitempty"`
}

func summarize(e *job.Execution) executionSummary {
	return executionSummary{
		ID:         e.ID,
		JobName:    e.JobName(),
		Parameters: e.Parameters,
		Status:     e.Status,
		ExitStatus: e.ExitStatus,
		Elapsed:    e.Elapsed().String(),
		Steps:      e.StepExecutions,
		Failures:   e.FailureMessages(),
	}
}
