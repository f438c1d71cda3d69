package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/flitsinc/taskbridge/internal/eventlog"
	"github.com/flitsinc/taskbridge/internal/journal"
	"github.com/flitsinc/taskbridge/internal/protocol"
	"github.com/flitsinc/taskbridge/internal/testutil"
)

func TestJournalRoundTrip(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	j := journal.New(db, "session-1")
	ctx := context.Background()
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	events := []eventlog.Event{
		{Kind: eventlog.KindInit, At: at},
		{Kind: eventlog.KindUserMessage, Text: "please summarize", At: at},
		{Kind: eventlog.KindSentToAgent, Text: "please summarize", Attachments: []string{"notes.txt"}, At: at},
		{Kind: eventlog.KindStatus, State: protocol.StateWorking, At: at},
	}
	for _, evt := range events {
		if err := j.Append(ctx, evt); err != nil {
			t.Fatalf("append %s: %v", evt.Kind, err)
		}
	}

	got, err := j.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("persisted %d events, want %d", len(got), len(events))
	}
	for i, evt := range events {
		if got[i].Kind != evt.Kind || got[i].Text != evt.Text || got[i].State != evt.State {
			t.Fatalf("event %d round-tripped as %+v, want %+v", i, got[i], evt)
		}
	}
	if len(got[2].Attachments) != 1 || got[2].Attachments[0] != "notes.txt" {
		t.Fatalf("attachments lost: %+v", got[2])
	}
}

func TestJournalIsolatesSessions(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	ctx := context.Background()
	a := journal.New(db, "session-a")
	b := journal.New(db, "session-b")

	if err := a.Append(ctx, eventlog.Event{Kind: eventlog.KindUserMessage, Text: "mine"}); err != nil {
		t.Fatal(err)
	}
	if err := b.Append(ctx, eventlog.Event{Kind: eventlog.KindUserMessage, Text: "theirs"}); err != nil {
		t.Fatal(err)
	}

	got, err := a.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Text != "mine" {
		t.Fatalf("session isolation broken: %+v", got)
	}
}

func TestJournalAsSinkPersistsLiveLog(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	j := journal.New(db, "session-1")
	l := eventlog.New(eventlog.WithSink(j))
	l.Append(eventlog.Event{Kind: eventlog.KindUserMessage, Text: "hello"})

	got, err := j.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Kind != eventlog.KindInit || got[1].Kind != eventlog.KindUserMessage {
		t.Fatalf("sink did not persist log appends: %+v", got)
	}
}
