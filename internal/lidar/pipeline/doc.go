// Package pipeline is the receive loop for one sensor stream.
//
// A Pipeline owns everything one stream needs: the validated profile, the
// lidar and IMU sockets, the packet parser, the field buffers, the frame
// tracker and a single receive buffer. Nothing is shared between pipelines
// and there is no package-level state, so several sensors can run side by
// side in their own goroutines.
//
// The steady-state loop is synchronous: wait for readiness, read each ready
// handle, then parse, extract and track in the calling goroutine. When a
// sweep closes the pipeline optionally destaggers the fields, hands them to
// the frame handler, then clears them for the next sweep.
package pipeline
