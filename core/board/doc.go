// Package board holds the in-memory dispatch-board state and the reducer
// that keeps it consistent under two inputs: full REST snapshots and
// incremental push events from the live feed.
//
// State is the triple (unassigned jobs, assigned-today jobs, technician
// roster) plus daily stats and the optional week schedule. It is mutated by
// exactly two paths:
//
//  1. ApplySnapshot — a completed snapshot fully replaces each section it
//     carries. Sections that failed to load leave the previous data intact.
//  2. Apply — location and status events patch the matching technician in
//     place. Structural events (assignment, job status transition) are never
//     patched locally; Apply returns OutcomeReload and the caller re-runs the
//     snapshot loader.
//
// No other code path mutates the lists. The assignment and route workflows
// only ever trigger reloads, which keeps them from diverging from the
// canonical source.
package board
