package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sebdah/goldie/v2"

	burperrors "github.com/vango-dev/burp/internal/errors"
	"github.com/vango-dev/burp/pkg/mirror"
	"github.com/vango-dev/burp/pkg/schema"
	"github.com/vango-dev/burp/pkg/session"
)

func golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	color.NoColor = true
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestPrintSnapshotGolden(t *testing.T) {
	snap := &mirror.Snapshot{
		Version: "2.30",
		TakenAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Entries: []mirror.Entry{
			{
				Key:    mirror.Key{Kind: "me", ID: "0"},
				Fields: map[string]schema.Value{"program": schema.U16(4), "preview": schema.U16(2)},
			},
			{
				Key:    mirror.Key{Kind: "product"},
				Fields: map[string]schema.Value{"name": schema.String("Studio HD")},
				Stale:  true,
			},
			{
				Key:    mirror.Key{Kind: "version"},
				Fields: map[string]schema.Value{"major": schema.U16(2), "minor": schema.U16(30)},
			},
		},
	}

	var buf bytes.Buffer
	printSnapshot(&buf, snap)
	golden(t).Assert(t, "dump", buf.Bytes())
}

func TestPrintEventsGolden(t *testing.T) {
	events := []mirror.ChangeEvent{
		sampleEvent(),
		{
			Key: mirror.Key{Kind: "me", ID: "0"},
			Fields: []mirror.FieldChange{
				{Name: "position", Old: schema.U16(0), New: schema.U16(5000), Had: true},
				{Name: "in_transition", Old: schema.Bool(false), New: schema.Bool(true), Had: true},
			},
		},
	}

	var buf bytes.Buffer
	for _, ev := range events {
		printEvent(&buf, ev)
	}
	golden(t).Assert(t, "events", buf.Bytes())
}

func TestErrorFormatGolden(t *testing.T) {
	err := burperrors.Classify(&session.HandshakeTimeoutError{Attempts: 3})

	var buf bytes.Buffer
	burperrors.Fprint(&buf, err)
	golden(t).Assert(t, "handshake_timeout", buf.Bytes())
}
