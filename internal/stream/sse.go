package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WriteSSE writes one event as a Server-Sent Events frame.
func WriteSSE(w io.Writer, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}

// Pipe writes every event from events to w, flushing after each frame, until
// the event channel closes or ctx is done. It returns the first write error.
func Pipe(ctx context.Context, w io.Writer, events <-chan Event) error {
	flusher, _ := w.(http.Flusher)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if err := WriteSSE(w, e); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
