// internal/types/interfaces.go
package types

import "context"

// Room is the transport collaborator: an out-of-band data channel plus a
// voice primitive. Implementations bridge to a real media server or to the
// local websocket frontend.
type Room interface {
	// SendData publishes an arbitrary payload on the data channel.
	SendData(ctx context.Context, payload []byte) error

	// Say speaks text aloud to the candidate.
	Say(ctx context.Context, text string) error

	// Transcripts delivers finalized candidate utterances.
	Transcripts() <-chan Transcript

	// Data delivers inbound data-channel payloads.
	Data() <-chan []byte

	Close() error
}

// Renderer turns a finished report into opaque document bytes.
type Renderer interface {
	Render(ctx context.Context, report *CompositeReport) ([]byte, error)
}
