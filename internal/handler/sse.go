package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/iamvkosarev/ira-companion/pkg/lang"
)

// streamEvent is one SSE payload on the send stream.
type streamEvent struct {
	Event    string `json:"event"`
	Content  string `json:"content,omitempty"`
	ChatID   string `json:"chat_id,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
}

var errGenerationFailed = lang.NewSet(
	"Sorry, something went wrong, try again",
	lang.NewTrans(lang.Hindi, "Sorry, thoda issue ho gaya, try again"),
	lang.NewTrans(lang.Mixed, "Sorry, thoda issue ho gaya, try again"),
)

// sseDelivery adapts an HTTP response into the orchestrator's delivery
// channel. Headers go out lazily with the first event, so requests rejected
// before streaming can still answer with a plain JSON status.
type sseDelivery struct {
	w       http.ResponseWriter
	flusher http.Flusher
	tag     lang.Tag
	opened  bool
}

func newSSEDelivery(w http.ResponseWriter, flusher http.Flusher, tag lang.Tag) *sseDelivery {
	return &sseDelivery{
		w:       w,
		flusher: flusher,
		tag:     tag,
	}
}

func (d *sseDelivery) started() bool {
	return d.opened
}

func (d *sseDelivery) Fragment(text string) error {
	return d.send(streamEvent{Event: "delta", Content: text})
}

func (d *sseDelivery) Done(chatID, reply string) {
	_ = d.send(
		streamEvent{
			Event:    "done",
			ChatID:   chatID,
			Content:  reply,
			Finished: true,
		},
	)
}

func (d *sseDelivery) Fail(error) {
	_ = d.send(
		streamEvent{
			Event:    "error",
			Error:    errGenerationFailed.Text(d.tag),
			Finished: true,
		},
	)
}

func (d *sseDelivery) send(event streamEvent) error {
	if !d.opened {
		d.w.Header().Set("Content-Type", "text/event-stream")
		d.w.Header().Set("Cache-Control", "no-cache")
		d.w.Header().Set("Connection", "keep-alive")
		d.w.Header().Set("X-Accel-Buffering", "no")
		d.w.WriteHeader(http.StatusOK)
		d.opened = true
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal sse event: %w", err)
	}
	if _, err = fmt.Fprintf(d.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write sse event: %w", err)
	}
	d.flusher.Flush()
	return nil
}
