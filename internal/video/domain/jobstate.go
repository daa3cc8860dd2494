package domain

import "fmt"

type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

func ParseJobState(s string) (JobState, error) {
	switch JobState(s) {
	case JobPending, JobRunning, JobCompleted, JobFailed, JobCancelled:
		return JobState(s), nil
	default:
		return "", fmt.Errorf("unknown job state: %q", s)
	}
}

func CanTransitionJob(from, to JobState) bool {
	switch from {
	case JobPending:
		return to == JobRunning || to == JobCancelled || to == JobFailed
	case JobRunning:
		return to == JobCompleted || to == JobFailed || to == JobCancelled
	default:
		return false
	}
}

func ValidateJobTransition(from, to JobState) error {
	if from == to {
		return nil
	}
	if !CanTransitionJob(from, to) {
		return fmt.Errorf("invalid job transition: %s -> %s", from, to)
	}
	return nil
}
