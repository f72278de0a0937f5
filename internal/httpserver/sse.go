package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Server-sent event names of the chat stream.
const (
	eventMessage = "message"
	eventDone    = "done"
	eventError   = "error"
)

// eventStream writes server-sent events. Headers are sent with the first event so a
// request rejected before streaming can still answer with a JSON error.
type eventStream struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newEventStream(w http.ResponseWriter) *eventStream {
	return &eventStream{w: w, rc: http.NewResponseController(w)}
}

func (e *eventStream) send(event string, v any) {
	if !e.started {
		h := e.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		e.w.WriteHeader(http.StatusOK)
		e.started = true
	}
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(errorBody{Error: err.Error()})
		event = eventError
	}
	_, _ = fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data)
	_ = e.rc.Flush()
}
