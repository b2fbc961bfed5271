// Package inspect renders a single compiled DAG for humans or as JSON.
package inspect

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mattjoyce/dagwright/internal/dagfactory"
)

// Report is the structured JSON representation of a DAG report.
type Report struct {
	DAGID       string   `json:"dag_id"`
	Source      string   `json:"source"`
	Schedule    string   `json:"schedule"`
	Description string   `json:"description,omitempty"`
	Catchup     bool     `json:"catchup"`
	Tags        []string `json:"tags,omitempty"`
	Fingerprint string   `json:"fingerprint"`
	Steps       []Step   `json:"steps"`
}

// Step is one task in execution order.
type Step struct {
	Position    int             `json:"position"`
	TaskID      string          `json:"task_id"`
	Kind        string          `json:"kind"`
	Operator    string          `json:"operator"`
	Callable    string          `json:"callable,omitempty"`
	BashCommand string          `json:"bash_command,omitempty"`
	Upstream    []string        `json:"upstream"`
	Kwargs      json.RawMessage `json:"kwargs"`
}

// BuildReport renders a terminal-friendly report for one DAG in set.
func BuildReport(set *dagfactory.Set, dagID string) (string, error) {
	report, err := gatherReportData(set, dagID)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "DAG Report\n")
	fmt.Fprintf(&out, "DAG ID      : %s\n", report.DAGID)
	fmt.Fprintf(&out, "Source      : %s\n", report.Source)
	fmt.Fprintf(&out, "Schedule    : %s\n", renderUnset(report.Schedule, "<none>"))
	if report.Description != "" {
		fmt.Fprintf(&out, "Description : %s\n", report.Description)
	}
	fmt.Fprintf(&out, "Catchup     : %t\n", report.Catchup)
	if len(report.Tags) > 0 {
		fmt.Fprintf(&out, "Tags        : %s\n", strings.Join(report.Tags, ", "))
	}
	fmt.Fprintf(&out, "Fingerprint : %s\n", report.Fingerprint)
	fmt.Fprintf(&out, "Tasks       : %d\n", len(report.Steps))
	fmt.Fprintf(&out, "\n")

	for _, step := range report.Steps {
		fmt.Fprintf(&out, "[%d] %s (%s)\n", step.Position, step.TaskID, step.Kind)
		fmt.Fprintf(&out, "    operator : %s\n", step.Operator)
		if step.Callable != "" {
			fmt.Fprintf(&out, "    callable : %s\n", step.Callable)
		}
		if step.BashCommand != "" {
			fmt.Fprintf(&out, "    command  : %s\n", step.BashCommand)
		}
		if len(step.Upstream) == 0 {
			fmt.Fprintf(&out, "    upstream : <none>\n")
		} else {
			fmt.Fprintf(&out, "    upstream : %s\n", strings.Join(step.Upstream, ", "))
		}

		fmt.Fprintf(&out, "    kwargs   :\n")
		for _, line := range strings.Split(strings.TrimSpace(prettyJSON(step.Kwargs)), "\n") {
			fmt.Fprintf(&out, "      %s\n", line)
		}
		fmt.Fprintf(&out, "\n")
	}

	return strings.TrimRight(out.String(), "\n") + "\n", nil
}

// BuildJSONReport returns the machine-readable JSON report for one DAG.
func BuildJSONReport(set *dagfactory.Set, dagID string) (string, error) {
	report, err := gatherReportData(set, dagID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

func gatherReportData(set *dagfactory.Set, dagID string) (*Report, error) {
	if strings.TrimSpace(dagID) == "" {
		return nil, fmt.Errorf("dag_id is required")
	}
	if set == nil {
		return nil, fmt.Errorf("dag %q not found", dagID)
	}
	dag, ok := set.DAGs[dagID]
	if !ok {
		return nil, fmt.Errorf("dag %q not found (known: %s)", dagID, strings.Join(set.IDs(), ", "))
	}

	upstream := make(map[string][]string, len(dag.Tasks))
	for _, e := range dag.Edges {
		upstream[e.To] = append(upstream[e.To], e.From)
	}

	report := &Report{
		DAGID:       dag.ID,
		Source:      dag.Source,
		Schedule:    dag.Schedule,
		Description: dag.Description,
		Catchup:     dag.Catchup,
		Tags:        dag.Tags,
		Fingerprint: dag.Fingerprint,
		Steps:       make([]Step, 0, len(dag.Order)),
	}

	for idx, taskID := range dag.Order {
		task := dag.Tasks[taskID]
		kwargs, err := json.Marshal(task.Kwargs)
		if err != nil {
			return nil, fmt.Errorf("task %q: marshal kwargs: %w", taskID, err)
		}
		ups := upstream[taskID]
		sort.Strings(ups)
		if ups == nil {
			ups = []string{}
		}
		report.Steps = append(report.Steps, Step{
			Position:    idx + 1,
			TaskID:      taskID,
			Kind:        string(task.Kind),
			Operator:    task.Operator,
			Callable:    task.Callable,
			BashCommand: task.BashCommand,
			Upstream:    ups,
			Kwargs:      kwargs,
		})
	}
	return report, nil
}

func renderUnset(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "{}"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(data)
}
