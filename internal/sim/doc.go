// Package sim is the administrative front of a simulated cluster. It
// creates nodes, crashes and recovers them, lets them leave, and hands out
// client handles that talk to coordinators.
package sim
