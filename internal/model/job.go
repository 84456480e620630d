package model

import "time"

// Job represents one print job in the system
type Job struct {
	ID               int64             `json:"id"`
	Spec             PrintSpec         `json:"spec"`
	Status           JobStatus         `json:"status"`
	Progress         float64           `json:"progress"`
	ImageKey         string            `json:"imageKey,omitempty"`
	ImageURL         string            `json:"imageUrl,omitempty"`
	SourceLoadErrors []SourceLoadError `json:"sourceLoadErrors,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	StartedAt        *time.Time        `json:"startedAt,omitempty"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
}

// SourceLoadError records a layer whose source failed to load, at least
// partially. It never blocks job completion.
type SourceLoadError struct {
	URL string `json:"url"`
}

// PrintSubmitResponse is returned when a print job is accepted
type PrintSubmitResponse struct {
	JobID     int64     `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// PrintStatus is one entry of a job's status stream. The stream terminates
// once Status is "finished".
type PrintStatus struct {
	ID               int64             `json:"id"`
	Status           JobStatus         `json:"status"`
	Progress         float64           `json:"progress"`
	ImageURL         string            `json:"imageUrl,omitempty"`
	SourceLoadErrors []SourceLoadError `json:"sourceLoadErrors,omitempty"`
}
