// Package viz renders runs for the terminal: styled summary panels,
// λ-series plots and braille projections of trajectory frames.
package viz
