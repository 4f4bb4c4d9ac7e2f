package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Sternrassler/event-aggregator/pkg/pagination"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPlanCommand_Text(t *testing.T) {
	out, err := runCmd(t, "plan", "--limit", "10", "--page", "2", "--totals", "kudago=23,timepad=7")
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}

	for _, want := range []string{
		"page 2 of 3 (limit 10, 30 items)",
		"kudago       total=23     skip=5      take=8",
		"timepad      total=7      skip=5      take=2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPlanCommand_JSON(t *testing.T) {
	out, err := runCmd(t, "plan", "--limit", "10", "--page", "4", "--totals", "a=23", "--totals", "b=7", "-o", "json")
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}

	var got planOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if !got.Empty {
		t.Error("page 4 should be past the end")
	}
	if len(got.Sources) != 2 || got.Sources[0].Source != "a" || got.Sources[1].Source != "b" {
		t.Fatalf("Sources = %+v, want a then b", got.Sources)
	}
	if got.Sources[0].Skip != 23 || got.Sources[1].Skip != 7 {
		t.Errorf("skips = %d/%d, want 23/7", got.Sources[0].Skip, got.Sources[1].Skip)
	}
	if got.Meta.TotalPages != 3 || got.Meta.CurrentPage != 4 {
		t.Errorf("Meta = %+v", got.Meta)
	}
}

func TestPlanCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing totals", []string{"plan"}},
		{"malformed pair", []string{"plan", "--totals", "kudago"}},
		{"bad count", []string{"plan", "--totals", "kudago=many"}},
		{"zero limit", []string{"plan", "--limit", "0", "--totals", "a=1"}},
		{"negative total", []string{"plan", "--totals", "a=-1"}},
		{"unknown format", []string{"plan", "--totals", "a=1", "-o", "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCmd(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestParseTotals(t *testing.T) {
	got, err := parseTotals([]string{" kudago = 23", "timepad=0"})
	if err != nil {
		t.Fatalf("parseTotals() error = %v", err)
	}
	want := []pagination.SourceTotal{{Source: "kudago", Total: 23}, {Source: "timepad", Total: 0}}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	t.Setenv("EVENTS_MAX_LIMIT", "1")

	_, err := runCmd(t, "serve")
	if err == nil || !strings.Contains(err.Error(), "max limit") {
		t.Errorf("serve error = %v, want max limit validation error", err)
	}
}

func TestServeCommand_MissingSourcesFile(t *testing.T) {
	_, err := runCmd(t, "serve", "--sources", "/nonexistent/sources.yaml", "--port", "18080")
	if err == nil || !strings.Contains(err.Error(), "sources file") {
		t.Errorf("serve error = %v, want sources file error", err)
	}
}
