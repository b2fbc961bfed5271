package dagfactory

// DefaultKey is the reserved top-level key whose body supplies defaults for
// every other DAG in the same file.
const DefaultKey = "default"

// FileSpec is one DAG-factory YAML file: DAG id -> definition.
type FileSpec struct {
	Path    string
	Default *DAGSpec
	DAGs    map[string]DAGSpec
}

// DAGSpec is one DAG definition as written in YAML.
type DAGSpec struct {
	DefaultArgs      map[string]any      `mapstructure:"default_args"`
	ScheduleInterval string              `mapstructure:"schedule_interval"`
	Description      string              `mapstructure:"description"`
	Catchup          *bool               `mapstructure:"catchup"`
	Tags             []string            `mapstructure:"tags"`
	Tasks            map[string]TaskSpec `mapstructure:"tasks"`
	Extra            map[string]any      `mapstructure:",remain"`
}

// TaskSpec is one task inside a DAG definition.
type TaskSpec struct {
	Operator           string         `mapstructure:"operator"`
	PythonCallableName string         `mapstructure:"python_callable_name"`
	PythonCallableFile string         `mapstructure:"python_callable_file"`
	BashCommand        string         `mapstructure:"bash_command"`
	OpKwargs           map[string]any `mapstructure:"op_kwargs"`
	Dependencies       []string       `mapstructure:"dependencies"`
	Extra              map[string]any `mapstructure:",remain"`
}

// TaskKind identifies what a compiled task does when run.
type TaskKind string

const (
	TaskKindPython TaskKind = "python"
	TaskKindBash   TaskKind = "bash"
	TaskKindEmpty  TaskKind = "empty"
)

var operatorKinds = map[string]TaskKind{
	"PythonOperator": TaskKindPython,
	"airflow.operators.python.PythonOperator":          TaskKindPython,
	"airflow.operators.python_operator.PythonOperator": TaskKindPython,
	"BashOperator":                                   TaskKindBash,
	"airflow.operators.bash.BashOperator":            TaskKindBash,
	"airflow.operators.bash_operator.BashOperator":   TaskKindBash,
	"EmptyOperator":                                  TaskKindEmpty,
	"DummyOperator":                                  TaskKindEmpty,
	"airflow.operators.empty.EmptyOperator":          TaskKindEmpty,
	"airflow.operators.dummy.DummyOperator":          TaskKindEmpty,
	"airflow.operators.dummy_operator.DummyOperator": TaskKindEmpty,
}

// Task is one executable vertex in a compiled DAG.
type Task struct {
	ID          string         `json:"id"`
	Kind        TaskKind       `json:"kind"`
	Operator    string         `json:"operator"`
	Callable    string         `json:"callable,omitempty"`
	BashCommand string         `json:"bash_command,omitempty"`
	Kwargs      map[string]any `json:"kwargs,omitempty"`
}

// Edge is a dependency: From must finish before To starts.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DAG is a validated, compiled DAG definition.
type DAG struct {
	ID              string
	Source          string
	Schedule        string
	Description     string
	Catchup         bool
	Tags            []string
	DefaultArgs     map[string]any
	Tasks           map[string]Task
	Edges           []Edge
	EntryTaskIDs    []string
	TerminalTaskIDs []string
	Order           []string // topological, ties broken by task id
	Fingerprint     string   // blake3:<hex> of normalized compiled form.
}

// Set is a compiled collection of DAGs keyed by id.
type Set struct {
	DAGs map[string]*DAG
}

// IDs returns the DAG ids in sorted order.
func (s *Set) IDs() []string {
	return sortedMapKeys(s.DAGs)
}

// CallableSet reports whether a python callable name can be resolved.
type CallableSet interface {
	Has(name string) bool
}
