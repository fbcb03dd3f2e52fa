// Package scenario drives a simulated cluster from a YAML script.
//
// A scenario is a configuration plus an ordered list of steps. Membership
// steps (create, leave, crash, recover) block until the cluster has settled.
// Client steps (get, update) wait for their feedback unless marked async, in
// which case they are collected by the next wait step or at the end of the
// run. Every client call is timed and summarized in the Report.
//
//	name: crash and recovery
//	config:
//	  timeout: 500ms
//	  nodes: [{id: 10}, {id: 20}, {id: 30}, {id: 40}]
//	steps:
//	  - op: update
//	    node: 10
//	    key: 15
//	    value: x
//	    expect: {status: OK}
//	  - op: crash
//	    node: 20
package scenario
