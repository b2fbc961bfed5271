package dagfactory

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// Compile validates every DAG in spec and compiles it into a task graph.
// callables may be nil, in which case python callable names are not checked.
func Compile(spec *FileSpec, callables CallableSet) (*Set, error) {
	out := &Set{DAGs: make(map[string]*DAG, len(spec.DAGs))}

	for _, id := range sortedMapKeys(spec.DAGs) {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("dag id is empty")
		}
		compiled, err := compileDAG(id, mergeDefaults(spec.DAGs[id], spec.Default), callables)
		if err != nil {
			return nil, fmt.Errorf("dag %q: %w", id, err)
		}
		compiled.Source = spec.Path
		out.DAGs[id] = compiled
	}
	return out, nil
}

func compileDAG(id string, spec DAGSpec, callables CallableSet) (*DAG, error) {
	if len(spec.Tasks) == 0 {
		return nil, fmt.Errorf("tasks must be non-empty")
	}

	dag := &DAG{
		ID:          id,
		Schedule:    spec.ScheduleInterval,
		Description: spec.Description,
		Tags:        spec.Tags,
		DefaultArgs: spec.DefaultArgs,
		Tasks:       make(map[string]Task, len(spec.Tasks)),
	}
	if spec.Catchup != nil {
		dag.Catchup = *spec.Catchup
	}

	for _, taskID := range sortedMapKeys(spec.Tasks) {
		task, err := compileTask(taskID, spec.Tasks[taskID], callables)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", taskID, err)
		}
		dag.Tasks[taskID] = task
	}

	hasUpstream := make(map[string]bool, len(dag.Tasks))
	hasDownstream := make(map[string]bool, len(dag.Tasks))
	for _, taskID := range sortedMapKeys(spec.Tasks) {
		for _, dep := range sortedUnique(spec.Tasks[taskID].Dependencies) {
			if _, ok := dag.Tasks[dep]; !ok {
				return nil, fmt.Errorf("task %q depends on unknown task %q", taskID, dep)
			}
			if dep == taskID {
				return nil, fmt.Errorf("task %q depends on itself", taskID)
			}
			dag.Edges = append(dag.Edges, Edge{From: dep, To: taskID})
			hasUpstream[taskID] = true
			hasDownstream[dep] = true
		}
	}
	sortEdges(dag.Edges)

	for taskID := range dag.Tasks {
		if !hasUpstream[taskID] {
			dag.EntryTaskIDs = append(dag.EntryTaskIDs, taskID)
		}
		if !hasDownstream[taskID] {
			dag.TerminalTaskIDs = append(dag.TerminalTaskIDs, taskID)
		}
	}
	sort.Strings(dag.EntryTaskIDs)
	sort.Strings(dag.TerminalTaskIDs)

	order, err := topologicalOrder(dag)
	if err != nil {
		return nil, err
	}
	dag.Order = order

	fingerprint, err := fingerprintDAG(dag)
	if err != nil {
		return nil, err
	}
	dag.Fingerprint = fingerprint
	return dag, nil
}

func compileTask(id string, spec TaskSpec, callables CallableSet) (Task, error) {
	operator := strings.TrimSpace(spec.Operator)
	if operator == "" {
		return Task{}, fmt.Errorf("operator is required")
	}
	kind, ok := operatorKinds[operator]
	if !ok {
		return Task{}, fmt.Errorf("unsupported operator %q", operator)
	}

	task := Task{
		ID:       id,
		Kind:     kind,
		Operator: operator,
		Kwargs:   spec.OpKwargs,
	}

	switch kind {
	case TaskKindPython:
		name := strings.TrimSpace(spec.PythonCallableName)
		if name == "" {
			return Task{}, fmt.Errorf("python_callable_name is required for %s", operator)
		}
		if callables != nil && !callables.Has(name) {
			return Task{}, fmt.Errorf("python_callable_name %q is not a registered callable", name)
		}
		task.Callable = name
	case TaskKindBash:
		if strings.TrimSpace(spec.BashCommand) == "" {
			return Task{}, fmt.Errorf("bash_command is required for %s", operator)
		}
		task.BashCommand = spec.BashCommand
	}
	return task, nil
}

// topologicalOrder runs Kahn's algorithm, always taking the smallest ready
// task id so the order is stable.
func topologicalOrder(d *DAG) ([]string, error) {
	inDegree := make(map[string]int, len(d.Tasks))
	adj := make(map[string][]string, len(d.Tasks))
	for id := range d.Tasks {
		inDegree[id] = 0
	}
	for _, edge := range d.Edges {
		adj[edge.From] = append(adj[edge.From], edge.To)
		inDegree[edge.To]++
	}

	var ready []string
	for id, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(d.Tasks))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		for _, next := range adj[n] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
				sort.Strings(ready)
			}
		}
	}

	if len(order) != len(d.Tasks) {
		return nil, fmt.Errorf("task dependencies contain a cycle")
	}
	return order, nil
}

func fingerprintDAG(d *DAG) (string, error) {
	type fingerprintShape struct {
		ID          string         `json:"id"`
		Schedule    string         `json:"schedule"`
		Catchup     bool           `json:"catchup"`
		DefaultArgs map[string]any `json:"default_args"`
		Tasks       []Task         `json:"tasks"`
		Edges       []Edge         `json:"edges"`
	}

	tasks := make([]Task, 0, len(d.Tasks))
	for _, id := range sortedMapKeys(d.Tasks) {
		tasks = append(tasks, d.Tasks[id])
	}

	body, err := json.Marshal(fingerprintShape{
		ID:          d.ID,
		Schedule:    d.Schedule,
		Catchup:     d.Catchup,
		DefaultArgs: d.DefaultArgs,
		Tasks:       tasks,
		Edges:       d.Edges,
	})
	if err != nil {
		return "", fmt.Errorf("marshal dag fingerprint input: %w", err)
	}
	sum := blake3.Sum256(body)
	return "blake3:" + hex.EncodeToString(sum[:]), nil
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From == edges[j].From {
			return edges[i].To < edges[j].To
		}
		return edges[i].From < edges[j].From
	})
}

func sortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, value := range in {
		value = strings.TrimSpace(value)
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func sortedMapKeys[V any](in map[string]V) []string {
	out := make([]string, 0, len(in))
	for key := range in {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
