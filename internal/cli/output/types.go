package output

// JSON output shapes shared by commands.

// DiagnosticInfo is a rendered diagnostic.
type DiagnosticInfo struct {
	Severity string `json:"severity"`
	Name     string `json:"name,omitempty"`
	Message  string `json:"message"`
}

// EntityInfo describes one sub-query.
type EntityInfo struct {
	Name          string   `json:"name"`
	Pool          string   `json:"pool,omitempty"`
	Description   string   `json:"description,omitempty"`
	Dependencies  []string `json:"dependencies"`
	Columns       []string `json:"columns,omitempty"`
	OutputColumns []string `json:"output_columns,omitempty"`
	Recursive     bool     `json:"recursive,omitempty"`
	Upstream      []string `json:"upstream,omitempty"`
	Body          string   `json:"body,omitempty"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
}

// EntityListOutput is the JSON output of entity and library listings.
type EntityListOutput struct {
	Workspace string       `json:"workspace,omitempty"`
	Entities  []EntityInfo `json:"entities"`
	Total     int          `json:"total"`
}

// DecomposeOutput is the JSON output of decompose.
type DecomposeOutput struct {
	Workspace string       `json:"workspace"`
	MainName  string       `json:"main_name,omitempty"`
	MainSQL   string       `json:"main_sql"`
	Order     []string     `json:"order"`
	Entities  []EntityInfo `json:"entities"`
}

// ComposeOutput is the JSON output of compose.
type ComposeOutput struct {
	Workspace string   `json:"workspace"`
	Entity    string   `json:"entity,omitempty"`
	Include   []string `json:"include,omitempty"`
	SQL       string   `json:"sql"`
}

// GraphNode is one sub-query of the dependency graph.
type GraphNode struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
}

// GraphLevel groups sub-queries whose dependencies are all in earlier levels.
type GraphLevel struct {
	Level    int         `json:"level"`
	Entities []GraphNode `json:"entities"`
}

// GraphOutput is the JSON output of graph.
type GraphOutput struct {
	Workspace     string       `json:"workspace"`
	Levels        []GraphLevel `json:"levels"`
	Roots         []string     `json:"roots"`
	Leaves        []string     `json:"leaves"`
	TotalEntities int          `json:"total_entities"`
	TotalEdges    int          `json:"total_edges"`
}

// DependentsOutput is the JSON output of dependents.
type DependentsOutput struct {
	Name       string   `json:"name"`
	Transitive bool     `json:"transitive"`
	Dependents []string `json:"dependents"`
}

// WorkspaceInfo describes one workspace.
type WorkspaceInfo struct {
	Name      string `json:"name"`
	ID        string `json:"id"`
	MainName  string `json:"main_name,omitempty"`
	HasMain   bool   `json:"has_main"`
	Entities  int    `json:"entities"`
	UpdatedAt string `json:"updated_at"`
}

// ResultOutput is a generic status result.
type ResultOutput struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Names   []string `json:"names,omitempty"`
}

// ResolveOutput is the JSON output of resolve.
type ResolveOutput struct {
	SQL         string           `json:"sql"`
	Composed    bool             `json:"composed"`
	Private     []string         `json:"private"`
	Shared      []string         `json:"shared"`
	Unknown     []string         `json:"unknown"`
	Diagnostics []DiagnosticInfo `json:"diagnostics"`
}
