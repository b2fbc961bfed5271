package inspect

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mattjoyce/dagwright/internal/dagfactory"
)

type callables map[string]bool

func (c callables) Has(name string) bool { return c[name] }

func compileSet(t *testing.T, src string) *dagfactory.Set {
	t.Helper()
	spec, err := dagfactory.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	set, err := dagfactory.Compile(spec, callables{"extract_helper": true, "load_helper": true})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return set
}

const etlDAG = `
orders:
  schedule_interval: "@daily"
  description: Load orders
  tags: [etl]
  tasks:
    extract:
      operator: PythonOperator
      python_callable_name: extract_helper
    notify:
      operator: BashOperator
      bash_command: echo done
      dependencies: [load]
    load:
      operator: PythonOperator
      python_callable_name: load_helper
      op_kwargs:
        table_name: order_lines
      dependencies: [extract]
`

func TestBuildReportRendersStepsInOrder(t *testing.T) {
	t.Parallel()

	out, err := BuildReport(compileSet(t, etlDAG), "orders")
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}

	for _, want := range []string{
		"DAG ID      : orders",
		"Schedule    : @daily",
		"Description : Load orders",
		"Tags        : etl",
		"Tasks       : 3",
		"[1] extract (python)",
		"[2] load (python)",
		"[3] notify (bash)",
		"command  : echo done",
		"upstream : extract",
		`"table_name": "order_lines"`,
		"fingerprint",
	} {
		if !strings.Contains(strings.ToLower(out), strings.ToLower(want)) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "[1] extract") > strings.Index(out, "[3] notify") {
		t.Fatalf("steps out of order:\n%s", out)
	}
}

func TestBuildJSONReport(t *testing.T) {
	t.Parallel()

	out, err := BuildJSONReport(compileSet(t, etlDAG), "orders")
	if err != nil {
		t.Fatalf("BuildJSONReport: %v", err)
	}

	var report Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.DAGID != "orders" || len(report.Steps) != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	first := report.Steps[0]
	if first.TaskID != "extract" || len(first.Upstream) != 0 {
		t.Fatalf("unexpected first step: %+v", first)
	}
	if !strings.HasPrefix(report.Fingerprint, "blake3:") {
		t.Fatalf("unexpected fingerprint %q", report.Fingerprint)
	}
}

func TestBuildReportUnknownDAG(t *testing.T) {
	t.Parallel()

	_, err := BuildReport(compileSet(t, etlDAG), "missing")
	if err == nil || !strings.Contains(err.Error(), "known: orders") {
		t.Fatalf("expected not-found error listing known dags, got %v", err)
	}

	if _, err := BuildReport(nil, " "); err == nil {
		t.Fatal("expected error for empty dag id")
	}
}
