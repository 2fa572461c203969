package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/user/aegisforge/internal/types"
)

// WSRoom implements types.Room over a single websocket connection to a
// local frontend. Inbound messages with a TRANSCRIPT type become
// finalized transcripts; everything else is surfaced on the data channel.
type WSRoom struct {
	conn *websocket.Conn

	transcripts chan types.Transcript
	data        chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

type inboundFrame struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Speaker    string  `json:"speaker"`
	Confidence float64 `json:"confidence"`
}

// AcceptRoom upgrades an HTTP request to a websocket room and starts the
// read pump.
func AcceptRoom(w http.ResponseWriter, r *http.Request) (*WSRoom, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // local dev frontend
	})
	if err != nil {
		return nil, fmt.Errorf("accept websocket: %w", err)
	}

	room := &WSRoom{
		conn:        conn,
		transcripts: make(chan types.Transcript, 16),
		data:        make(chan []byte, 16),
		done:        make(chan struct{}),
	}
	go room.readPump(r.Context())
	return room, nil
}

func (r *WSRoom) readPump(ctx context.Context) {
	defer r.Close()
	for {
		_, payload, err := r.conn.Read(ctx)
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil || frame.Type != TypeTranscript {
			select {
			case r.data <- payload:
			case <-r.done:
				return
			default:
				slog.Warn("dropping inbound data frame, channel full")
			}
			continue
		}

		speaker := frame.Speaker
		if speaker == "" {
			speaker = "candidate"
		}
		confidence := frame.Confidence
		if confidence == 0 {
			confidence = 1.0
		}
		select {
		case r.transcripts <- types.Transcript{Speaker: speaker, Text: frame.Text, Confidence: confidence}:
		case <-r.done:
			return
		}
	}
}

// SendData publishes a payload on the data channel.
func (r *WSRoom) SendData(ctx context.Context, payload []byte) error {
	select {
	case <-r.done:
		return fmt.Errorf("room closed")
	default:
	}
	if err := r.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("publish data: %w", err)
	}
	return nil
}

// Say delivers agent speech. The local frontend renders it as a transcript
// line; a media-server Room would synthesize audio instead.
func (r *WSRoom) Say(ctx context.Context, text string) error {
	return r.SendData(ctx, Transcript("agent", text))
}

// Transcripts delivers finalized candidate utterances.
func (r *WSRoom) Transcripts() <-chan types.Transcript { return r.transcripts }

// Data delivers non-transcript inbound payloads.
func (r *WSRoom) Data() <-chan []byte { return r.data }

// Done is closed when the connection is gone.
func (r *WSRoom) Done() <-chan struct{} { return r.done }

// Close tears the connection down. Idempotent.
func (r *WSRoom) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.conn.Close(websocket.StatusNormalClosure, "session ended")
	})
	return nil
}

var _ types.Room = (*WSRoom)(nil)
