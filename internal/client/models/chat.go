package models

import (
	"encoding/json"
	"strings"
	"time"
)

// AskResult is one normalised message exchange.
type AskResult struct {
	Text string
	// Time is the reply latency in seconds, when known.
	Time *float64
	// Expression drives the displayed agent mood, e.g. "happy".
	Expression string
}

// SubmitRequest is the body posted to the chat submission endpoint.
type SubmitRequest struct {
	Message  string `json:"message"`
	Username string `json:"username,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Submission is the outcome of posting a message: either the reply itself
// (Immediate) or a pointer to an asynchronous job (Accepted).
type Submission interface {
	isSubmission()
}

// Immediate carries a reply the server produced synchronously.
type Immediate struct {
	Result AskResult
}

// Accepted carries the job the server queued. Location may be empty.
type Accepted struct {
	JobID    string
	Location string
}

func (Immediate) isSubmission() {}
func (Accepted) isSubmission()  {}

// JobStatus is the server-reported state of an asynchronous job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobSucceeded JobStatus = "succeeded"
	JobFinished  JobStatus = "finished"
	JobFailed    JobStatus = "failed"
)

// Succeeded reports whether s is a terminal success ("finished" is an alias).
func (s JobStatus) Succeeded() bool {
	switch JobStatus(strings.ToLower(string(s))) {
	case JobSucceeded, JobFinished:
		return true
	}
	return false
}

// Failed reports whether s is a terminal failure.
func (s JobStatus) Failed() bool {
	return JobStatus(strings.ToLower(string(s))) == JobFailed
}

// Job is one body returned by the job status endpoint.
type Job struct {
	ID     string          `json:"job_id,omitempty"`
	Status JobStatus       `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// Role identifies the author of a conversation line.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one line of the conversation log.
type ChatMessage struct {
	ID        int64
	Role      Role
	Text      string
	Timestamp time.Time
}
