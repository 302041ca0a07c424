package output

// TableFile is one exported CSV.
type TableFile struct {
	Name   string `json:"name"`
	File   string `json:"file"`
	Rows   int    `json:"rows"`
	SHA256 string `json:"sha256"`
}

// GenerateOutput is the JSON result of the generate command.
type GenerateOutput struct {
	RunID  string      `json:"run_id"`
	Dir    string      `json:"dir"`
	Seed   uint64      `json:"seed"`
	AsOf   string      `json:"as_of"`
	Tables []TableFile `json:"tables"`
}

// LoadedTable is one loaded table.
type LoadedTable struct {
	Name       string `json:"name"`
	Rows       int64  `json:"rows"`
	DurationMS int64  `json:"duration_ms"`
}

// LoadOutput is the JSON result of the load command.
type LoadOutput struct {
	RunID  string        `json:"run_id"`
	Dir    string        `json:"dir"`
	Target string        `json:"target"`
	Seed   uint64        `json:"seed"`
	Tables []LoadedTable `json:"tables"`
}

// ClassReport is one row of a classification report.
type ClassReport struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// TrainOutput is the JSON result of the train command.
type TrainOutput struct {
	RunID     string        `json:"run_id"`
	ModelPath string        `json:"model_path"`
	TrainRows int           `json:"train_rows"`
	TestRows  int           `json:"test_rows"`
	Accuracy  float64       `json:"accuracy"`
	Classes   []ClassReport `json:"classes"`
}

// RunInfo is one recorded run.
type RunInfo struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	Seed        uint64 `json:"seed"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RunsOutput is the JSON result of the runs command.
type RunsOutput struct {
	Runs []RunInfo `json:"runs"`
}

// StageNode is one pipeline stage.
type StageNode struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	DependsOn   []string `json:"depends_on"`
	UsedBy      []string `json:"used_by"`
}

// StageLevel groups stages with the same depth.
type StageLevel struct {
	Level  int         `json:"level"`
	Stages []StageNode `json:"stages"`
}

// StagesOutput is the JSON result of the stages command.
type StagesOutput struct {
	Order       []string     `json:"order"`
	Levels      []StageLevel `json:"levels"`
	TotalStages int          `json:"total_stages"`
	TotalEdges  int          `json:"total_edges"`
}
