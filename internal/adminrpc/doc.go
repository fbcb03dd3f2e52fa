// Package adminrpc exposes the administrative commands of a simulated
// cluster over gRPC.
//
// The service is described by hand rather than generated: every method is
// unary and carries a google.protobuf.Struct in both directions, so any gRPC
// client can drive the simulation without a compiled schema. Sentinel
// errors of the simulation are mapped to gRPC status codes at this boundary.
package adminrpc
