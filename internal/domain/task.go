package domain

// StageStatus is the status of a single stage as reported by the server.
type StageStatus string

const (
	StageStatusWaiting   StageStatus = "waiting"
	StageStatusRunning   StageStatus = "running"
	StageStatusPaused    StageStatus = "paused"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

// OverallStatus is the aggregate status of a task across all of its stages.
type OverallStatus string

const (
	OverallStatusRunning   OverallStatus = "running"
	OverallStatusCompleted OverallStatus = "completed"
	OverallStatusFailed    OverallStatus = "failed"
	OverallStatusPaused    OverallStatus = "paused"
)

// DisplayIntent tells the UI which template to render a stage with. The key
// and context are opaque to the agent and passed through untouched.
type DisplayIntent struct {
	Key     string         `json:"key"`
	Context map[string]any `json:"context,omitempty"`
}

// TaskStage is a server-defined sub-step of a task. Stages are never created
// or destroyed locally.
type TaskStage struct {
	StageID       string        `json:"stageId"`
	TaskID        string        `json:"taskId"`
	StageIndex    int           `json:"stageIndex"`
	DisplayIntent DisplayIntent `json:"displayIntent"`
	WorkerType    string        `json:"workerType"`
	Status        StageStatus   `json:"status"`
	Progress      float64       `json:"progress"`
}

// Task is a unit of work tracked by the download server. The taskId is
// assigned server-side and is stable for the lifetime of the task; the agent
// never invents identifiers and only overwrites tasks with server snapshots.
type Task struct {
	TaskID                  string        `json:"taskId"`
	Title                   string        `json:"title"`
	OverallStatus           OverallStatus `json:"overallStatus"`
	CurrentStageID          string        `json:"currentStageId,omitempty"`
	CurrentStageDescription string        `json:"currentStageDescription,omitempty"`
	OverallProgress         *float64      `json:"overallProgress,omitempty"`
	// CreatedAt is unix milliseconds, used for recency ordering in the UI.
	CreatedAt int64 `json:"createdAt,omitempty"`
}

// ConfigField describes one entry of the server's configuration schema.
type ConfigField struct {
	Key     string   `json:"key"`
	Label   string   `json:"label,omitempty"`
	Type    string   `json:"type"`
	Default any      `json:"default,omitempty"`
	Options []string `json:"options,omitempty"`
}
