package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestConversationRoundTrip(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	c := &models.Conversation{
		ID:        "conv-1",
		UserID:    "user-1",
		Title:     "AAPL deep dive",
		AgentName: "valuation_agent",
		Status:    models.ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.CreateConversation(c); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := db.GetConversation("conv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("conversation not found")
	}
	if got.Title != c.Title || got.AgentName != c.AgentName || got.Status != c.Status {
		t.Errorf("round trip mismatch: got %+v", got)
	}

	missing, err := db.GetConversation("nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing conversation, got %+v", missing)
	}
}

func TestUpsertItemReplacesPayload(t *testing.T) {
	db := openTestDB(t)

	item := models.ConversationItem{
		ItemID:         "item-1",
		Event:          "message_chunk",
		ConversationID: "conv-1",
		Role:           models.RoleAgent,
		Payload:        "foo",
		CreatedAt:      time.Now(),
	}
	if err := db.UpsertItem(item); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	item.Payload = "foobar"
	if err := db.UpsertItem(item); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	items, err := db.ListItems("conv-1")
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item after re-save, got %d", len(items))
	}
	if items[0].Payload != "foobar" {
		t.Errorf("payload = %q, want %q", items[0].Payload, "foobar")
	}
}

func TestDeleteConversationRemovesItems(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	if err := db.CreateConversation(&models.Conversation{
		ID: "conv-1", UserID: "user-1", Status: models.ConversationActive,
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := db.UpsertItem(models.ConversationItem{
		ItemID: "item-1", Event: "message_chunk", ConversationID: "conv-1",
		Role: models.RoleAgent, Payload: "x", CreatedAt: now,
	}); err != nil {
		t.Fatalf("upsert item: %v", err)
	}

	if err := db.DeleteConversation("conv-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got, _ := db.GetConversation("conv-1"); got != nil {
		t.Error("conversation survived deletion")
	}
	items, err := db.ListItems("conv-1")
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items after deletion, got %d", len(items))
	}
}

func TestTaskJSONColumnsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	started := time.Now().UTC().Truncate(time.Second)

	task := &models.Task{
		ID:                    "task-1",
		ConversationID:        "conv-1",
		ThreadID:              "thread-1",
		UserID:                "user-1",
		AgentName:             "signals_agent",
		Title:                 "Hourly check",
		Query:                 "check AAPL",
		Status:                models.TaskStatusRunning,
		Pattern:               models.TaskPatternRecurring,
		Schedule:              &models.ScheduleConfig{IntervalMinutes: 60},
		RemoteTaskIDs:         []string{"remote-1", "remote-2"},
		HandoffFromSuperAgent: true,
		CreatedAt:             started,
		StartedAt:             &started,
	}
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	got, err := db.GetTask("task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got == nil {
		t.Fatal("task not found")
	}
	if got.Schedule == nil || got.Schedule.IntervalMinutes != 60 {
		t.Errorf("schedule = %+v, want interval 60", got.Schedule)
	}
	if len(got.RemoteTaskIDs) != 2 || got.RemoteTaskIDs[1] != "remote-2" {
		t.Errorf("remote task ids = %v", got.RemoteTaskIDs)
	}
	if !got.HandoffFromSuperAgent {
		t.Error("handoff flag lost")
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, started)
	}
	if got.CompletedAt != nil {
		t.Errorf("completed_at = %v, want nil", got.CompletedAt)
	}
}

func TestUpdateTaskPersistsTerminalState(t *testing.T) {
	db := openTestDB(t)

	task := &models.Task{
		ID: "task-1", ConversationID: "conv-1", UserID: "user-1",
		AgentName: "risk_agent", Query: "q",
		Status: models.TaskStatusPending, Pattern: models.TaskPatternOnce,
		CreatedAt: time.Now(),
	}
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	task.Fail("upstream outage", time.Now())
	if err := db.UpdateTask(task); err != nil {
		t.Fatalf("update task: %v", err)
	}

	got, err := db.GetTask("task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != models.TaskStatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.ErrorMessage != "upstream outage" {
		t.Errorf("error message = %q", got.ErrorMessage)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not persisted")
	}
}

func TestListActiveRecurringTasksFiltersTerminal(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	seed := []*models.Task{
		{ID: "t1", ConversationID: "c", UserID: "u", AgentName: "a", Query: "q",
			Status: models.TaskStatusRunning, Pattern: models.TaskPatternRecurring,
			Schedule: &models.ScheduleConfig{IntervalMinutes: 5}, CreatedAt: now},
		{ID: "t2", ConversationID: "c", UserID: "u", AgentName: "a", Query: "q",
			Status: models.TaskStatusCancelled, Pattern: models.TaskPatternRecurring,
			Schedule: &models.ScheduleConfig{IntervalMinutes: 5}, CreatedAt: now},
		{ID: "t3", ConversationID: "c", UserID: "u", AgentName: "a", Query: "q",
			Status: models.TaskStatusRunning, Pattern: models.TaskPatternOnce, CreatedAt: now},
	}
	for _, task := range seed {
		if err := db.CreateTask(task); err != nil {
			t.Fatalf("create %s: %v", task.ID, err)
		}
	}

	active, err := db.ListActiveRecurringTasks()
	if err != nil {
		t.Fatalf("list active recurring: %v", err)
	}
	if len(active) != 1 || active[0].ID != "t1" {
		t.Errorf("active recurring = %+v, want just t1", active)
	}
}

func TestListConversationsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	base := time.Now()

	for i, id := range []string{"conv-a", "conv-b"} {
		ts := base.Add(time.Duration(i) * time.Second)
		if err := db.CreateConversation(&models.Conversation{
			ID: id, UserID: "user-1", Status: models.ConversationActive,
			CreatedAt: ts, UpdatedAt: ts,
		}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	got, err := db.ListConversations("user-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "conv-b" {
		t.Errorf("order wrong: %+v", got)
	}
}
