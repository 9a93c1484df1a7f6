package blackboard

import (
	"testing"

	"github.com/deskagent/deskagent/internal/coretypes"
)

func TestAddSubTask_RejectsDuplicateID(t *testing.T) {
	b := New("task-1")

	if !b.AddSubTask(coretypes.SubTask{ID: "st1", Description: "first"}) {
		t.Fatal("first insert should succeed")
	}
	if b.AddSubTask(coretypes.SubTask{ID: "st1", Description: "duplicate"}) {
		t.Fatal("duplicate id should be rejected")
	}
}

func TestGetNextSubTask_RespectsDependencyOrder(t *testing.T) {
	b := New("task-1")
	b.AddSubTasks([]coretypes.SubTask{
		{ID: "a", Dependencies: nil},
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "c", Dependencies: []string{"a", "b"}},
	})

	next := b.GetNextSubTask()
	if next == nil || next.ID != "a" {
		t.Fatalf("expected a first, got %+v", next)
	}

	b.UpdateSubTaskStatus("a", coretypes.RequestCompleted, "done", "")
	next = b.GetNextSubTask()
	if next == nil || next.ID != "b" {
		t.Fatalf("expected b once a is completed, got %+v", next)
	}

	next = b.GetNextSubTask()
	if next.ID != "b" {
		t.Fatalf("b should remain the next candidate until it transitions out of pending, got %+v", next)
	}

	b.UpdateSubTaskStatus("b", coretypes.RequestCompleted, "done", "")
	next = b.GetNextSubTask()
	if next == nil || next.ID != "c" {
		t.Fatalf("expected c once a and b are completed, got %+v", next)
	}
}

func TestGetNextSubTask_NilWhenNoneReady(t *testing.T) {
	b := New("task-1")
	b.AddSubTask(coretypes.SubTask{ID: "a", Dependencies: []string{"missing"}})

	if next := b.GetNextSubTask(); next != nil {
		t.Fatalf("expected nil, got %+v", next)
	}
}

func TestUpdateSubTaskStatus_StampsCompletedAtOnTerminal(t *testing.T) {
	b := New("task-1")
	b.AddSubTask(coretypes.SubTask{ID: "a"})

	b.UpdateSubTaskStatus("a", coretypes.RequestInProgress, "", "")
	pending := b.GetPendingSubTasks()
	if len(pending) != 0 {
		t.Fatalf("in-progress subtask should not appear as pending, got %d", len(pending))
	}

	b.UpdateSubTaskStatus("a", coretypes.RequestCompleted, "result", "")
	dict := b.ToDict()
	subtasks := dict["subtasks"].(map[string]coretypes.SubTask)
	if subtasks["a"].CompletedAt == nil {
		t.Fatal("completed subtask should have CompletedAt stamped")
	}
}

func TestAllCompleted_AndHasFailures(t *testing.T) {
	b := New("task-1")
	if b.AllCompleted() {
		t.Fatal("empty blackboard should not report all completed")
	}

	b.AddSubTasks([]coretypes.SubTask{{ID: "a"}, {ID: "b"}})
	if b.AllCompleted() {
		t.Fatal("pending subtasks should not be all-completed")
	}

	b.UpdateSubTaskStatus("a", coretypes.RequestCompleted, "", "")
	b.UpdateSubTaskStatus("b", coretypes.RequestFailed, "", "boom")
	if !b.AllCompleted() {
		t.Fatal("both subtasks are terminal, should be all-completed")
	}
	if !b.HasFailures() {
		t.Fatal("b failed, should report has failures")
	}
}

func TestResults_SetGetAll(t *testing.T) {
	b := New("task-1")
	b.SetResult("k1", "v1")
	b.SetResult("k2", 42)

	v, ok := b.GetResult("k1")
	if !ok || v != "v1" {
		t.Fatalf("GetResult(k1) = %v, %v", v, ok)
	}

	if _, ok := b.GetResult("missing"); ok {
		t.Fatal("missing key should not be found")
	}

	all := b.GetAllResults()
	if len(all) != 2 {
		t.Fatalf("expected 2 results, got %d", len(all))
	}
}

func TestMessages_FilteredByRecipient(t *testing.T) {
	b := New("task-1")
	b.SendMessage(coretypes.AgentMessage{From: "host", To: "worker-1", Content: "go", Type: coretypes.AgentMsgRequest})
	b.SendMessage(coretypes.AgentMessage{From: "host", To: "worker-2", Content: "go", Type: coretypes.AgentMsgRequest})
	b.SendMessage(coretypes.AgentMessage{From: "worker-1", To: "host", Content: "done", Type: coretypes.AgentMsgResponse})

	forWorker1 := b.GetMessagesFor("worker-1")
	if len(forWorker1) != 1 {
		t.Fatalf("expected 1 message for worker-1, got %d", len(forWorker1))
	}

	forHost := b.GetMessagesFor("host")
	if len(forHost) != 1 {
		t.Fatalf("expected 1 message for host, got %d", len(forHost))
	}
}

func TestTrajectory_AppendOnly(t *testing.T) {
	b := New("task-1")
	b.AddTrajectory("dispatch_tool", "host", map[string]any{"tool": "navigate"})
	b.AddTrajectory("tool_result", "host", nil)

	traj := b.Trajectory()
	if len(traj) != 2 {
		t.Fatalf("expected 2 trajectory entries, got %d", len(traj))
	}
	if traj[0].Timestamp.IsZero() {
		t.Fatal("trajectory entry should have a timestamp")
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	b := New("task-1")
	b.AddSubTasks([]coretypes.SubTask{
		{ID: "a", Description: "do a"},
		{ID: "b", Description: "do b", Dependencies: []string{"a"}},
	})
	b.UpdateSubTaskStatus("a", coretypes.RequestCompleted, "result-a", "")
	b.SetResult("k", "v")
	b.SendMessage(coretypes.AgentMessage{From: "host", To: "worker", Content: "hi", Type: coretypes.AgentMsgInfo})
	b.AddTrajectory("started", "host", nil)
	b.SetRequestStatus(coretypes.RequestInProgress, "")

	dict := b.ToDict()
	restored, err := FromDict(dict)
	if err != nil {
		t.Fatalf("FromDict: %v", err)
	}

	if restored.TaskID() != b.TaskID() {
		t.Errorf("task id mismatch: %q vs %q", restored.TaskID(), b.TaskID())
	}
	if restored.RequestStatus() != b.RequestStatus() {
		t.Errorf("request status mismatch: %v vs %v", restored.RequestStatus(), b.RequestStatus())
	}
	if len(restored.GetAllResults()) != len(b.GetAllResults()) {
		t.Errorf("results mismatch")
	}
	if len(restored.GetMessagesFor("worker")) != len(b.GetMessagesFor("worker")) {
		t.Errorf("messages mismatch")
	}
	if len(restored.Trajectory()) != len(b.Trajectory()) {
		t.Errorf("trajectory mismatch")
	}
	if restored.AllCompleted() != b.AllCompleted() {
		t.Errorf("all-completed mismatch")
	}

	restoredDict := restored.ToDict()
	if restoredDict["task_id"] != dict["task_id"] {
		t.Errorf("round-tripped dict task_id mismatch")
	}
}

func TestFromDict_RequiresTaskID(t *testing.T) {
	if _, err := FromDict(map[string]any{}); err == nil {
		t.Fatal("expected error when task_id is missing")
	}
}

func TestContext_SetGet(t *testing.T) {
	b := New("task-1")
	b.SetContext("retry_count", 2)
	v, ok := b.GetContext("retry_count")
	if !ok || v != 2 {
		t.Fatalf("GetContext(retry_count) = %v, %v", v, ok)
	}
}
