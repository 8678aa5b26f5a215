package feed

import (
	"testing"
	"time"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.C:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestHub_TopicFiltering(t *testing.T) {
	hub := NewHub()
	sensors := hub.Subscribe(4, TopicSensors)
	all := hub.Subscribe(4)
	defer sensors.Close()
	defer all.Close()

	hub.Publish(Event{Topic: TopicHistory, MAC: "AA"})
	hub.Publish(Event{Topic: TopicSensors, MAC: "BB"})

	if ev := receive(t, sensors); ev.MAC != "BB" {
		t.Errorf("sensors subscriber got %+v", ev)
	}
	if ev := receive(t, all); ev.Topic != TopicHistory {
		t.Errorf("expected history first, got %+v", ev)
	}
	if ev := receive(t, all); ev.Topic != TopicSensors {
		t.Errorf("expected sensors second, got %+v", ev)
	}
}

func TestHub_DropsOnFullBuffer(t *testing.T) {
	hub := NewHub()
	var drops int
	hub.OnDrop(func(Topic) { drops++ })

	sub := hub.Subscribe(1)
	defer sub.Close()

	hub.Publish(Event{Topic: TopicSensors, MAC: "1"})
	hub.Publish(Event{Topic: TopicSensors, MAC: "2"})

	if hub.Dropped() != 1 || drops != 1 {
		t.Fatalf("expected one drop, got %d (callback %d)", hub.Dropped(), drops)
	}
	if ev := receive(t, sub); ev.MAC != "1" {
		t.Errorf("expected first event to be kept, got %+v", ev)
	}
}

func TestSubscription_Close(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(1)
	if hub.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Subscribers())
	}
	sub.Close()
	sub.Close()

	if hub.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.Subscribers())
	}
	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed")
	}
	// Publishing after close must not panic.
	hub.Publish(Event{Topic: TopicSensors})
}
