// Package clock provides the scalar version used to order replicas of a
// value. A version only ever grows through a coordinator's write, so the
// highest version among replica responses is the freshest value. There is
// no wall-clock or vector component.
package clock
