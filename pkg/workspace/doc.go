// Package workspace is the Worker Runtime's directory lifecycle manager:
// behind a pluggable Driver, it manages the scratch directory a single
// job's Pipeline Interpreter runs in. A workspace exists only for the life of
// one job attempt: Manager.Open creates it before the first step runs,
// Manager.Close removes it once the job reaches a terminal phase, with an
// escape hatch to retain a failed job's workspace for inspection.
package workspace
