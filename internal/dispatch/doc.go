// Package dispatch runs one compiled DAG locally, task by task, the way a
// single scheduler pass would for one logical date.
//
// Tasks execute serially in the DAG's topological order:
//   - python tasks invoke a registered callable with the task's op_kwargs
//     plus ds and ds_nodash for the logical date
//   - bash tasks run under "sh -c" with a per-task timeout
//   - empty tasks succeed without doing anything
//
// A failed task marks every downstream task upstream_failed; tasks on
// independent branches still run.
//
// Timeout handling:
//   - When a bash task's timeout expires, SIGTERM is sent to the process
//   - After a 5 second grace period, SIGKILL is sent if it is still running
package dispatch
