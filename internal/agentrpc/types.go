// Package agentrpc implements the HTTP/JSON wire contract between one
// Agent and the Controller (spec.md §4.5): GET /{backend}/tasks/ and
// POST /{backend}/task/update/, bearer-token authenticated.
package agentrpc

// TaskDTO is one AgentTask: a Task with every agent-reported field
// omitted, since the Agent is the one reporting them back.
type TaskDTO struct {
	ID         string `json:"id"`
	Backend    string `json:"backend"`
	Type       string `json:"type"`
	Definition string `json:"definition"`
	CreatedAt  int64  `json:"created_at"`
}

// TasksResponse is GET /{backend}/tasks/'s body.
type TasksResponse struct {
	Tasks []TaskDTO `json:"tasks"`
}

// TaskUpdateRequest is the JSON payload carried in POST
// /{backend}/task/update/'s form-encoded "payload" field.
type TaskUpdateRequest struct {
	TaskID      string  `json:"task_id"`
	Stage       string  `json:"stage"`
	Results     *string `json:"results,omitempty"`
	Complete    bool    `json:"complete"`
	TimestampNS *int64  `json:"timestamp_ns,omitempty"`
}

// TaskUpdateResponse is /{backend}/task/update/'s 200 body.
type TaskUpdateResponse struct {
	Response string `json:"response"`
}

// errorResponse is the generic body every 4xx/5xx returns; spec.md
// §4.5 requires unauthenticated requests get a generic message with no
// hint about which auth check failed.
type errorResponse struct {
	Error string `json:"error"`
}
