// Package viz draws simulation snapshots in the terminal.
//
// Particles are projected through a rotatable orthographic [Camera] onto a
// braille [Canvas] (2x4 dots per character). Three front ends share it:
//
//   - [Model]: the full-screen Bubble Tea live view
//   - [NewMenu]: a preset picker that opens the live view
//   - [Printer]: a sim.Observer that redraws frames on a plain terminal
//
// # Key Bindings
//
//	Space - Pause/Resume
//	N     - Single step while paused
//	A     - Add a body at the cursor
//	D     - Delete the body nearest the cursor
//	HJKL  - Move the cursor
//	XYZ   - Rotate (shift reverses)
//	+/-   - Zoom
//	[ ]   - Fewer/more steps per frame
//	R     - Resume after a numeric instability
//	T     - Cycle colour themes
//	Q     - Quit
package viz
