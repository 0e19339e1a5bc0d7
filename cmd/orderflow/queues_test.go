package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintQueues(t *testing.T) {
	var buf bytes.Buffer
	if err := printQueues(&buf, "order"); err != nil {
		t.Fatalf("printQueues: %v", err)
	}
	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "out_for_delivery") {
			line = l
		}
	}
	if !strings.Contains(line, "waiter") || !strings.Contains(line, "owner-dashboard") {
		t.Errorf("out_for_delivery should map to the waiter queue, got %q", line)
	}

	buf.Reset()
	if err := printQueues(&buf, "sale"); err != nil {
		t.Fatalf("printQueues: %v", err)
	}
	if strings.Contains(buf.String(), "out_for_delivery") {
		t.Error("sales never go out for delivery")
	}

	if err := printQueues(&buf, "invoice"); err == nil {
		t.Error("expected error for unknown entity")
	}
}

func TestOpenWord(t *testing.T) {
	if openWord(true) != "open" || openWord(false) != "closed" {
		t.Error("unexpected wording")
	}
}
