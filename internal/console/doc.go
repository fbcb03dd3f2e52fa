// Package console collects node log lines and store snapshots and renders
// them as tables for a human operator.
package console
