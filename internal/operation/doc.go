// Package operation tracks every pipeline operation started by the process.
//
// The [Registry] owns one [Operation] record and one event bus per operation,
// plus the set of live agent handles that belong to it. Records are never
// evicted; there is no persistence across restarts.
//
// Callers outside the registry only ever see snapshot copies of operations.
// Mutators are used by the pipeline orchestrator that runs the operation.
package operation
