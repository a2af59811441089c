package response

import (
	"log"
	"sync/atomic"
	"time"
)

// ItemSaver persists conversation items. UpsertItem must overwrite on
// repeated item ids, not insert.
type ItemSaver interface {
	UpsertItem(item SaveItem) error
}

// Emitter is the response emission sink: it annotates responses with
// stable item identity, applies buffering, persists the resulting
// items, and broadcasts the annotated response to stream subscribers.
type Emitter struct {
	buffer       *Buffer
	saver        ItemSaver
	events       chan Response
	droppedCount atomic.Uint64
	onPersist    func(n int)
}

// NewEmitter creates an Emitter over the given store with the given
// broadcast buffer size.
func NewEmitter(saver ItemSaver, bufferSize int) *Emitter {
	return &Emitter{
		buffer: NewBuffer(),
		saver:  saver,
		events: make(chan Response, bufferSize),
	}
}

// SetPersistHook registers a callback invoked with the number of items
// persisted per emission. Used for metrics.
func (e *Emitter) SetPersistHook(fn func(n int)) {
	e.onPersist = fn
}

// Emit applies buffering and persistence side effects and returns the
// annotated response for streaming to the client.
func (e *Emitter) Emit(r Response) Response {
	r = e.buffer.Annotate(r)
	e.persist(e.buffer.Ingest(r))
	e.broadcast(r)
	return r
}

// FlushTaskResponse finalizes buffered fragments for the task context
// so partial streamed text is not lost when a task ends mid-paragraph.
func (e *Emitter) FlushTaskResponse(conversationID, threadID, taskID string) {
	e.persist(e.buffer.FlushTask(conversationID, threadID, taskID))
}

// Events returns the broadcast channel of annotated responses.
// Subscribers that fall behind cause drops, not backpressure.
func (e *Emitter) Events() <-chan Response {
	return e.events
}

// DroppedCount returns the total number of broadcasts dropped.
func (e *Emitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Close closes the broadcast channel.
func (e *Emitter) Close() {
	close(e.events)
}

func (e *Emitter) persist(items []SaveItem) {
	for _, item := range items {
		if err := e.saver.UpsertItem(item); err != nil {
			log.Printf("[response] WARNING: persist item %s failed: %v", item.ItemID, err)
		}
	}
	if e.onPersist != nil && len(items) > 0 {
		e.onPersist(len(items))
	}
}

// broadcast sends to the events channel, trying a short timeout before
// dropping so a stalled subscriber cannot stall task execution.
func (e *Emitter) broadcast(r Response) {
	select {
	case e.events <- r:
		return
	default:
	}

	select {
	case e.events <- r:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[response] WARNING: event channel full, dropped response (total dropped: %d): event=%s", count, r.Event)
		}
	}
}
