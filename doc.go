/*
go-speedcam estimates vehicle speed from video using two horizontal
reference lines a known distance apart.

Object detections for each processed frame are filtered to vehicle classes,
given persistent identities by a centroid tracker and then timed as their
centroids pass through the tolerance band of each line.  The time taken to
travel between the lines gives the speed of the vehicle, and distinct
vehicles are counted per direction of travel.

The core is synchronous and frame ordered, a Pipeline owns one tracker and
one speed engine and must only be fed from a single goroutine.  Use a
separate Pipeline per video source, see RunAll.

Detection itself is outside this package, frames of detections are supplied
by a FrameSource such as a recorded detection script, see postprocess.Replay.
See example code and usage in the examples subdirectory.
*/
package speedcam
