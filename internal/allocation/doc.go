// Package allocation implements the pure session logic: claiming fractional
// item quantities under the conservation invariant, item maintenance, and the
// derived per-participant totals. Functions mutate the session they are given;
// callers own a private copy and persist it afterwards.
package allocation
