// Package playlist implements the track database, shuffler, repeater and
// filler that sit upstream of the pipeline and feed it Track/EncodedStream
// messages.
package playlist

// Track is one entry in a TrackDatabase.
type Track struct {
	ID       uint32
	URI      string
	Metadata string
}
