package models

import (
	"testing"
	"time"
)

func TestTaskStatus_Terminal(t *testing.T) {
	terminal := []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	open := []TaskStatus{TaskStatusPending, TaskStatusRunning, TaskStatusWaitingInput}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("expected %s to not be terminal", s)
		}
	}
}

func TestTask_Lifecycle(t *testing.T) {
	now := time.Now()
	task := &Task{ID: "t1", Status: TaskStatusPending}

	if !task.Start(now) {
		t.Fatal("expected Start on pending task to succeed")
	}
	if task.Status != TaskStatusRunning {
		t.Errorf("expected running, got %s", task.Status)
	}
	if task.StartedAt == nil {
		t.Error("expected StartedAt to be set")
	}

	if !task.Complete(now) {
		t.Fatal("expected Complete on running task to succeed")
	}
	if task.Status != TaskStatusCompleted {
		t.Errorf("expected completed, got %s", task.Status)
	}
	if task.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestTask_TerminalIsPermanent(t *testing.T) {
	now := time.Now()
	for _, terminal := range []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled} {
		task := &Task{ID: "t1", Status: terminal}

		if task.Start(now) {
			t.Errorf("Start on %s task should be a no-op", terminal)
		}
		if task.Complete(now) {
			t.Errorf("Complete on %s task should be a no-op", terminal)
		}
		if task.Fail("boom", now) {
			t.Errorf("Fail on %s task should be a no-op", terminal)
		}
		if task.Cancel(now) {
			t.Errorf("Cancel on %s task should be a no-op", terminal)
		}
		if task.Status != terminal {
			t.Errorf("status mutated from %s to %s", terminal, task.Status)
		}
	}
}

func TestTask_FailRecordsReason(t *testing.T) {
	now := time.Now()
	task := &Task{ID: "t1", Status: TaskStatusRunning}

	if !task.Fail("remote agent unavailable", now) {
		t.Fatal("expected Fail on running task to succeed")
	}
	if task.ErrorMessage != "remote agent unavailable" {
		t.Errorf("expected reason to be recorded, got %q", task.ErrorMessage)
	}
	if task.Status != TaskStatusFailed {
		t.Errorf("expected failed, got %s", task.Status)
	}
}

func TestTask_IsRecurring(t *testing.T) {
	task := &Task{Pattern: TaskPatternRecurring, Schedule: &ScheduleConfig{IntervalMinutes: 60}}
	if !task.IsRecurring() {
		t.Error("expected recurring task with schedule to be recurring")
	}

	task = &Task{Pattern: TaskPatternRecurring}
	if task.IsRecurring() {
		t.Error("recurring pattern without schedule config should not be recurring")
	}

	task = &Task{Pattern: TaskPatternOnce, Schedule: &ScheduleConfig{IntervalMinutes: 60}}
	if task.IsRecurring() {
		t.Error("once pattern should not be recurring")
	}
}

func TestPlan_HasGuidance(t *testing.T) {
	plan := &ExecutionPlan{GuidanceMessage: "please confirm the schedule"}
	if !plan.HasGuidance() {
		t.Error("expected guidance")
	}
	plan = &ExecutionPlan{Tasks: []*Task{{ID: "t1"}}}
	if plan.HasGuidance() {
		t.Error("expected no guidance")
	}
}
