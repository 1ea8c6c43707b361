// ABOUTME: Musical time package documentation
// ABOUTME: Describes the duration forms players type for loop bounds
// Package musictime converts between human-entered practice durations and
// seconds.
//
// Loop bounds and nudges are typed by musicians, so the parser accepts clock
// time as well as beats and bars once a tempo is known:
//
//	start, _ := musictime.ParseDuration("1:23", musictime.Meter{})
//	width, _ := musictime.ParseDuration("2 bars", musictime.Meter{BPM: 120, BeatsPerBar: 4})
package musictime
