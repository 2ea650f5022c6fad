package messaging

import "encoding/json"

// MessageType tags a command sent from a UI surface to the agent. The set is
// closed: adding a command means adding a constant here and a case in the
// router; an unrecognized tag is always answered with an explicit error.
type MessageType string

const (
	TypeGetAllTasks      MessageType = "GET_ALL_TASKS"
	TypePauseTask        MessageType = "PAUSE_TASK"
	TypeResumeTask       MessageType = "RESUME_TASK"
	TypeCancelTask       MessageType = "CANCEL_TASK"
	TypeOpenFileLocation MessageType = "OPEN_FILE_LOCATION"
	TypeOpenOptionsPage  MessageType = "OPEN_OPTIONS_PAGE"
)

// Message is the envelope UI surfaces submit over the messaging channel.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type PauseTaskPayload struct {
	TaskID string `json:"taskId"`
}

type ResumeTaskPayload struct {
	TaskID string `json:"taskId"`
}

// CancelTaskPayload carries the task to cancel. Cleanup defaults to removing
// on-disk artifacts when the caller does not say otherwise.
type CancelTaskPayload struct {
	TaskID  string `json:"taskId"`
	Cleanup *bool  `json:"cleanup,omitempty"`
}

type OpenFilePayload struct {
	TaskID string `json:"taskId"`
}

// Status is the outcome of handling one message.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Response is the uniform envelope every command handler produces exactly one
// of, synchronously awaited by the caller.
type Response struct {
	Status Status `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

func Success(data any) Response {
	return Response{Status: StatusSuccess, Data: data}
}

func Failure(err error) Response {
	return Response{Status: StatusError, Error: err.Error()}
}
