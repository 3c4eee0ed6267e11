// Package repository stores job and step executions on a coordinator.Coordinator.
package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ab180/lrbatch/coordinator"
	"github.com/ab180/lrbatch/job"
	"github.com/airbloc/logger"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var log = logger.New("repository")

const (
	runSeqPrefix        = "seq/run/"
	instanceSeqKey      = "seq/instance"
	executionSeqKey     = "seq/execution"
	stepExecutionSeqKey = "seq/step"
)

func instanceKey(jobName, key string) string {
	return fmt.Sprintf("instances/%s/%s", jobName, key)
}

func executionsPrefix(jobName, key string) string {
	return fmt.Sprintf("executions/%s/%s/", jobName, key)
}

func executionKey(jobName, key string, id int64) string {
	return fmt.Sprintf("%s%020d", executionsPrefix(jobName, key), id)
}

func stepsPrefix(jobName, key, stepName string) string {
	return fmt.Sprintf("steps/%s/%s/%s/", jobName, key, stepName)
}

func stepKey(jobName, key, stepName string, id int64) string {
	return fmt.Sprintf("%s%020d", stepsPrefix(jobName, key, stepName), id)
}

// Repository implements job.Repository.
type Repository struct {
	crd coordinator.Coordinator
}

func New(crd coordinator.Coordinator) *Repository {
	return &Repository{crd: crd}
}

var _ job.Repository = (*Repository)(nil)

func (r *Repository) CreateExecution(ctx context.Context, jobName string, params job.Parameters) (*job.Execution, error) {
	if params == nil {
		params = job.Parameters{}
	}
	key := params.Key()

	txn := coordinator.NewTxn()
	instance, err := r.findInstance(ctx, jobName, key)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		id, err := r.crd.IncrementCounter(ctx, instanceSeqKey)
		if err != nil {
			return nil, errors.Wrap(err, "generate instance ID")
		}
		instance = &job.Instance{ID: id, JobName: jobName, Key: key}
		txn.Put(instanceKey(jobName, key), instance)
	} else {
		records, err := r.executionRecords(ctx, jobName, key)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if rec.Status.IsRunning() {
				return nil, errors.Wrapf(job.ErrExecutionAlreadyRunning, "execution %d of %s%s", rec.ID, jobName, params)
			}
			if rec.Status == job.Completed || rec.Status == job.Abandoned {
				return nil, errors.Wrapf(job.ErrInstanceAlreadyComplete, "instance %d of %s%s", instance.ID, jobName, params)
			}
		}
	}

	id, err := r.crd.IncrementCounter(ctx, executionSeqKey)
	if err != nil {
		return nil, errors.Wrap(err, "generate execution ID")
	}
	e := job.NewExecution(id, instance, params)
	rec, err := newExecutionRecord(e)
	if err != nil {
		return nil, err
	}
	txn.Put(executionKey(jobName, key, id), rec)
	if _, err := r.crd.Commit(ctx, txn); err != nil {
		return nil, errors.Wrapf(err, "store execution %d", id)
	}
	log.Verbose("Created execution {} of instance {} ({})", id, instance.ID, jobName)
	return e, nil
}

func (r *Repository) UpdateExecution(ctx context.Context, e *job.Execution) error {
	rec, err := newExecutionRecord(e)
	if err != nil {
		return err
	}
	return r.crd.Put(ctx, executionKey(e.Instance.JobName, e.Instance.Key, e.ID), rec)
}

func (r *Repository) AddStepExecution(ctx context.Context, se *job.StepExecution) error {
	id, err := r.crd.IncrementCounter(ctx, stepExecutionSeqKey)
	if err != nil {
		return errors.Wrap(err, "generate step execution ID")
	}
	se.ID = id
	return r.UpdateStepExecution(ctx, se)
}

func (r *Repository) UpdateStepExecution(ctx context.Context, se *job.StepExecution) error {
	if se.Execution == nil || se.Execution.Instance == nil {
		return errors.Errorf("step execution %s does not belong to a job instance", se.StepName)
	}
	rec, err := newStepRecord(se)
	if err != nil {
		return err
	}
	instance := se.Execution.Instance
	return r.crd.Put(ctx, stepKey(instance.JobName, instance.Key, se.StepName, se.ID), rec)
}

func (r *Repository) LastStepExecution(ctx context.Context, instance *job.Instance, stepName string) (*job.StepExecution, error) {
	items, err := r.crd.Scan(ctx, stepsPrefix(instance.JobName, instance.Key, stepName))
	if err != nil {
		return nil, errors.Wrapf(err, "scan executions of step %s", stepName)
	}
	if len(items) == 0 {
		return nil, nil
	}
	var rec stepRecord
	if err := items[len(items)-1].Unmarshal(&rec); err != nil {
		return nil, errors.Wrapf(err, "read step execution %s", items[len(items)-1].Key)
	}
	return rec.toStepExecution(nil)
}

// NextRunID returns a run ID of the job which has never been returned before,
// even by other processes sharing the store.
func (r *Repository) NextRunID(ctx context.Context, jobName string) (int64, error) {
	id, err := r.crd.IncrementCounter(ctx, runSeqPrefix+jobName)
	if err != nil {
		return 0, errors.Wrapf(err, "generate run ID of job %s", jobName)
	}
	return id, nil
}

// LastExecution returns the latest execution of the job instance with its step executions,
// or nil if the instance has never been executed.
func (r *Repository) LastExecution(ctx context.Context, jobName string, params job.Parameters) (*job.Execution, error) {
	key := params.Key()
	instance, err := r.findInstance(ctx, jobName, key)
	if err != nil || instance == nil {
		return nil, err
	}
	records, err := r.executionRecords(ctx, jobName, key)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	last := records[len(records)-1]

	e := job.NewExecution(last.ID, instance, last.Parameters)
	if err := copier.Copy(e, &last); err != nil {
		return nil, errors.Wrapf(err, "copy execution %d", last.ID)
	}
	for _, msg := range last.FailureMessages {
		e.AddFailure(errors.New(msg))
	}

	stepItems, err := r.crd.Scan(ctx, fmt.Sprintf("steps/%s/%s/", jobName, key))
	if err != nil {
		return nil, errors.Wrapf(err, "scan step executions of execution %d", last.ID)
	}
	var stepRecords []stepRecord
	for _, item := range stepItems {
		var rec stepRecord
		if err := item.Unmarshal(&rec); err != nil {
			return nil, errors.Wrapf(err, "read step execution %s", item.Key)
		}
		stepRecords = append(stepRecords, rec)
	}
	stepRecords = lo.Filter(stepRecords, func(rec stepRecord, _ int) bool {
		return rec.ExecutionID == last.ID
	})
	// scanned by step name, restored in execution order
	sort.Slice(stepRecords, func(i, j int) bool {
		return stepRecords[i].ID < stepRecords[j].ID
	})
	for _, rec := range stepRecords {
		if _, err := rec.toStepExecution(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (r *Repository) findInstance(ctx context.Context, jobName, key string) (*job.Instance, error) {
	var instance job.Instance
	if err := r.crd.Get(ctx, instanceKey(jobName, key), &instance); err != nil {
		if errors.Is(err, coordinator.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "find instance of %s", jobName)
	}
	return &instance, nil
}

// executionRecords returns executions of an instance in order of creation.
func (r *Repository) executionRecords(ctx context.Context, jobName, key string) ([]executionRecord, error) {
	items, err := r.crd.Scan(ctx, executionsPrefix(jobName, key))
	if err != nil {
		return nil, errors.Wrapf(err, "scan executions of %s", jobName)
	}
	records := make([]executionRecord, len(items))
	for i, item := range items {
		if err := item.Unmarshal(&records[i]); err != nil {
			return nil, errors.Wrapf(err, "read execution %s", item.Key)
		}
	}
	return records, nil
}

type executionRecord struct {
	ID              int64           `json:"id"`
	JobName         string          `json:"jobName"`
	Parameters      job.Parameters  `json:"parameters"`
	Status          job.BatchStatus `json:"status"`
	ExitStatus      job.ExitStatus  `json:"exitStatus"`
	CreatedAt       time.Time       `json:"createdAt"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	EndedAt         *time.Time      `json:"endedAt,omitempty"`
	FailureMessages []string        `json:"failures,omitempty"`
}

// newExecutionRecord copies fields and getters of the execution having the same name.
func newExecutionRecord(e *job.Execution) (rec executionRecord, err error) {
	if err := copier.Copy(&rec, e); err != nil {
		return rec, errors.Wrapf(err, "copy execution %d", e.ID)
	}
	return rec, nil
}

type stepRecord struct {
	ID              int64           `json:"id"`
	ExecutionID     int64           `json:"executionId"`
	JobName         string          `json:"jobName"`
	StepName        string          `json:"stepName"`
	Status          job.BatchStatus `json:"status"`
	ExitStatus      job.ExitStatus  `json:"exitStatus"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	EndedAt         *time.Time      `json:"endedAt,omitempty"`
	ReadCount       int             `json:"readCount"`
	WriteCount      int             `json:"writeCount"`
	FilterCount     int             `json:"filterCount"`
	CommitCount     int             `json:"commitCount"`
	RollbackCount   int             `json:"rollbackCount"`
	FailureMessages []string        `json:"failures,omitempty"`
}

func newStepRecord(se *job.StepExecution) (rec stepRecord, err error) {
	if err := copier.Copy(&rec, se); err != nil {
		return rec, errors.Wrapf(err, "copy step execution %s", se.StepName)
	}
	rec.ExecutionID = se.Execution.ID
	return rec, nil
}

// toStepExecution restores the step execution. If e is given, the step execution is attached to it.
func (rec stepRecord) toStepExecution(e *job.Execution) (*job.StepExecution, error) {
	se := &job.StepExecution{}
	if e != nil {
		se = e.NewStepExecution(rec.StepName)
	}
	if err := copier.Copy(se, &rec); err != nil {
		return nil, errors.Wrapf(err, "copy step execution %s", rec.StepName)
	}
	for _, msg := range rec.FailureMessages {
		se.AddFailure(errors.New(msg))
	}
	return se, nil
}
