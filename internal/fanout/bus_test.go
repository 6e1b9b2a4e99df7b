package fanout

import (
	"testing"

	"github.com/molotovsingh/personal-backup-tool/internal/model"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(nil)
	defer b.Unsubscribe(sub)

	b.Publish(Notify(LevelInfo, "hello", ""))

	msg := <-sub.Events
	if msg.Type != TypeNotification || msg.Message != "hello" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestBus_FilterExcludesNonMatchingMessages(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(func(m Message) bool { return m.JobID == "wanted" })
	defer b.Unsubscribe(sub)

	b.Publish(JobUpdate(model.Job{ID: "other"}, false))
	b.Publish(JobUpdate(model.Job{ID: "wanted"}, false))

	msg := <-sub.Events
	if msg.JobID != "wanted" {
		t.Fatalf("expected only the filtered job id to arrive, got %+v", msg)
	}
	select {
	case extra := <-sub.Events:
		t.Fatalf("expected no further messages, got %+v", extra)
	default:
	}
}

func TestBus_EvictsSubscriberWithFullChannel(t *testing.T) {
	b := New(1)
	_ = b.Subscribe(nil)

	b.Publish(Notify(LevelInfo, "first", ""))
	b.Publish(Notify(LevelInfo, "second", "")) // channel already full, subscriber evicted

	if b.SubscriberCount() != 0 {
		t.Fatalf("expected stuck subscriber to be evicted, got count=%d", b.SubscriberCount())
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(nil)
	b.Unsubscribe(sub)

	if _, ok := <-sub.Events; ok {
		t.Fatalf("expected Events channel to be closed after Unsubscribe")
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected subscriber count 0, got %d", b.SubscriberCount())
	}
}

func TestJobUpdate_SetsFinalType(t *testing.T) {
	job := model.Job{ID: "j1", Status: model.StatusCompleted}
	msg := JobUpdate(job, true)
	if msg.Type != TypeJobFinalUpdate {
		t.Fatalf("expected job_final_update, got %s", msg.Type)
	}
}
