package model

// WebSocket message types
type WSMessageType string

const (
	WSMessageTypeProgress WSMessageType = "progress"
	WSMessageTypeComplete WSMessageType = "complete"
	WSMessageTypeError    WSMessageType = "error"
	WSMessageTypePing     WSMessageType = "ping"
	WSMessageTypePong     WSMessageType = "pong"
)

// WSMessage is the minimal message envelope
type WSMessage struct {
	Type WSMessageType `json:"type"`
}

// WSProgressMessage carries a job progress update
type WSProgressMessage struct {
	Type     WSMessageType `json:"type"`
	JobID    int64         `json:"jobId"`
	Status   JobStatus     `json:"status"`
	Progress float64       `json:"progress"`
}

// WSCompleteMessage carries the terminal status of a job
type WSCompleteMessage struct {
	Type   WSMessageType `json:"type"`
	JobID  int64         `json:"jobId"`
	Result interface{}   `json:"result"`
}

// WSError describes a job-level error
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WSErrorMessage carries a job-level error
type WSErrorMessage struct {
	Type  WSMessageType `json:"type"`
	JobID int64         `json:"jobId"`
	Error WSError       `json:"error"`
}
