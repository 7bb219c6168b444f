package session

import (
	"testing"

	"github.com/example/driver-dispatch/internal/models"
)

func TestQueueFIFOHead(t *testing.T) {
	q := NewCandidateQueue()
	q.Replace([]models.PickupRequest{{ID: "a"}, {ID: "b"}})
	head, ok := q.Head()
	if !ok || head.ID != "a" {
		t.Fatalf("expected head a, got %v %v", head.ID, ok)
	}
	q.Drop("a")
	head, ok = q.Head()
	if !ok || head.ID != "b" {
		t.Fatalf("expected head b after drop, got %v %v", head.ID, ok)
	}
}

func TestReplaceIsWholesale(t *testing.T) {
	q := NewCandidateQueue()
	q.Replace([]models.PickupRequest{{ID: "a"}, {ID: "b"}})
	q.Replace([]models.PickupRequest{{ID: "c"}})
	if q.Len() != 1 {
		t.Fatalf("expected stale entries dropped, len=%d", q.Len())
	}
	head, _ := q.Head()
	if head.ID != "c" {
		t.Fatalf("expected c, got %s", head.ID)
	}
}

func TestDroppedIDNeverReappears(t *testing.T) {
	q := NewCandidateQueue()
	q.Replace([]models.PickupRequest{{ID: "a"}, {ID: "b"}})
	q.Drop("a")
	// backend keeps returning the declined request on later polls
	for i := 0; i < 3; i++ {
		q.Replace([]models.PickupRequest{{ID: "a"}, {ID: "b"}})
		if head, _ := q.Head(); head.ID == "a" {
			t.Fatal("declined request re-offered within the session")
		}
		if q.Len() != 1 {
			t.Fatalf("expected only b, len=%d", q.Len())
		}
	}
}

func TestResetClearsDedupWindow(t *testing.T) {
	q := NewCandidateQueue()
	q.Replace([]models.PickupRequest{{ID: "a"}})
	q.Drop("a")
	q.Reset()
	q.Replace([]models.PickupRequest{{ID: "a"}})
	head, ok := q.Head()
	if !ok || head.ID != "a" {
		t.Fatal("a new session starts with a clean decline window")
	}
}
