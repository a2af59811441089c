package response

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// SaveItem is a persistence instruction produced by the buffer.
// Repeated SaveItems sharing one ItemID are upserts: the store must
// overwrite, not insert.
type SaveItem = models.ConversationItem

// bufferKey scopes one accumulating paragraph.
type bufferKey struct {
	conversationID string
	threadID       string
	taskID         string
	event          EventType
}

// bufferEntry accumulates text parts for one buffered event stream.
// It holds one stable item id for the life of the paragraph.
type bufferEntry struct {
	itemID    string
	role      models.Role
	text      strings.Builder
	createdAt time.Time
}

// Buffer aggregates streamed chunks into stable-identity paragraphs.
//
// Buffered kinds (message chunks, reasoning) accumulate per
// (conversation, thread, task, kind) and re-emit the entire text so far
// under the same item id. Immediate kinds write through, but first
// flush every buffered entry in the same task context: an immediate
// event always represents a paragraph boundary.
type Buffer struct {
	mu      sync.Mutex
	entries map[bufferKey]*bufferEntry
	newID   func() string
	clock   func() time.Time
}

// NewBuffer creates an empty response buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		entries: make(map[bufferKey]*bufferEntry),
		newID:   func() string { return uuid.New().String() },
		clock:   time.Now,
	}
}

func keyFor(r *Response) bufferKey {
	return bufferKey{
		conversationID: r.ConversationID,
		threadID:       r.ThreadID,
		taskID:         r.TaskID,
		event:          r.Event,
	}
}

// Annotate stamps a stable item id on the response.
// Buffered kinds reuse (or create) their paragraph's id; all other
// kinds get a fresh id if they carry none.
func (b *Buffer) Annotate(r Response) Response {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.Event.Buffered() {
		entry := b.entryLocked(&r)
		r.ItemID = entry.itemID
		return r
	}
	if r.ItemID == "" {
		r.ItemID = b.newID()
	}
	return r
}

// Ingest routes the response through the buffer and returns zero or
// more persistence instructions.
func (b *Buffer) Ingest(r Response) []SaveItem {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.Event.Buffered():
		entry := b.entryLocked(&r)
		entry.text.WriteString(r.Content)
		return []SaveItem{b.itemLocked(keyFor(&r), entry)}

	case r.Event.Immediate():
		// Flush the whole task context first, even when it is empty.
		items := b.flushContextLocked(r.ConversationID, r.ThreadID, r.TaskID)
		itemID := r.ItemID
		if itemID == "" {
			itemID = b.newID()
		}
		items = append(items, SaveItem{
			ItemID:         itemID,
			Event:          string(r.Event),
			ConversationID: r.ConversationID,
			ThreadID:       r.ThreadID,
			TaskID:         r.TaskID,
			Role:           r.Role,
			Payload:        payloadFor(&r),
			CreatedAt:      r.CreatedAt,
		})
		return items

	default:
		// Unclassified kinds are not persisted.
		return nil
	}
}

// FlushTask finalizes and clears all buffered entries scoped to the
// given task context. Called at task completion or failure so a
// trailing partial paragraph is not lost.
func (b *Buffer) FlushTask(conversationID, threadID, taskID string) []SaveItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushContextLocked(conversationID, threadID, taskID)
}

// Len returns the number of live buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// entryLocked returns the entry for the response's key, creating one
// with a fresh stable item id if absent. Caller must hold b.mu.
func (b *Buffer) entryLocked(r *Response) *bufferEntry {
	key := keyFor(r)
	entry, ok := b.entries[key]
	if !ok {
		entry = &bufferEntry{
			itemID:    b.newID(),
			role:      r.Role,
			createdAt: b.clock(),
		}
		b.entries[key] = entry
	}
	return entry
}

// flushContextLocked emits the accumulated aggregate for every entry in
// the (conversation, thread, task) context, regardless of event kind,
// and removes the entries. Entries flush oldest first so the persisted
// order is stable. Caller must hold b.mu.
func (b *Buffer) flushContextLocked(conversationID, threadID, taskID string) []SaveItem {
	var keys []bufferKey
	for key := range b.entries {
		if key.conversationID != conversationID || key.threadID != threadID || key.taskID != taskID {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, z := b.entries[keys[i]], b.entries[keys[j]]
		if !a.createdAt.Equal(z.createdAt) {
			return a.createdAt.Before(z.createdAt)
		}
		return keys[i].event < keys[j].event
	})

	items := make([]SaveItem, 0, len(keys))
	for _, key := range keys {
		items = append(items, b.itemLocked(key, b.entries[key]))
		delete(b.entries, key)
	}
	return items
}

// itemLocked builds the upsert instruction carrying the entire
// accumulated text so far. Caller must hold b.mu.
func (b *Buffer) itemLocked(key bufferKey, entry *bufferEntry) SaveItem {
	return SaveItem{
		ItemID:         entry.itemID,
		Event:          string(key.event),
		ConversationID: key.conversationID,
		ThreadID:       key.threadID,
		TaskID:         key.taskID,
		Role:           entry.role,
		Payload:        entry.text.String(),
		CreatedAt:      entry.createdAt,
	}
}

// payloadFor serializes an immediate response into its persisted form.
func payloadFor(r *Response) string {
	switch r.Event {
	case EventToolCallCompleted:
		if r.ToolResult != "" {
			return r.ToolName + ": " + r.ToolResult
		}
		return r.ToolName
	default:
		return r.Content
	}
}
