package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"advisorgate/internal/db"
	"advisorgate/internal/usage"
)

func TestPrintLedger(t *testing.T) {
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-2 * time.Hour)
	row := db.UsageLedger{UserID: "user-1"}
	row.Standard = db.TierCounter{Count: 2, WindowStart: &start, Pending: 1, PendingAt: &now}

	var buf bytes.Buffer
	if err := printLedger(&buf, "text", row, usage.DefaultLimits(), now); err != nil {
		t.Fatalf("printLedger: %v", err)
	}
	text := buf.String()
	if !strings.Contains(text, "user user-1  premium=false") {
		t.Fatalf("missing header:\n%s", text)
	}
	if !strings.Contains(text, start.Add(24*time.Hour).Format(time.RFC3339)) {
		t.Fatalf("missing reset time:\n%s", text)
	}

	buf.Reset()
	if err := printLedger(&buf, "json", row, usage.DefaultLimits(), now); err != nil {
		t.Fatalf("printLedger json: %v", err)
	}
	var out ledgerOut
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Tiers) != 3 || out.Tiers[0].Used != 2 || out.Tiers[0].Pending != 1 || out.Tiers[1].ResetAt != nil {
		t.Fatalf("unexpected tiers: %+v", out.Tiers)
	}
}

func TestRootHasSubcommands(t *testing.T) {
	for _, name := range []string{"resync", "ledger", "billing"} {
		if cmd, _, err := rootCmd.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("missing %q command", name)
		}
	}
}
