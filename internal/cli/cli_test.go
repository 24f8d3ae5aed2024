package cli

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/vietddude/fullres/internal/core/domain"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", "testdata/config.yaml"))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestProxiesCommand(t *testing.T) {
	out := run(t, "proxies")

	for _, want := range []string{"FileStack", "Placeholder", "#ff0000", "Pocket"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if !strings.HasPrefix(lines[1], "0") || !strings.Contains(lines[1], "FileStack") {
		t.Errorf("expected FileStack first in the chain, got %q", lines[1])
	}
}

func TestReverseCommand(t *testing.T) {
	out := run(t, "reverse",
		"https://steemitimages.com/0x0/http://x.example/a.png",
		"http://plain.example/b.png",
	)

	if !strings.Contains(out, "SteemitImages") || !strings.Contains(out, "http://x.example/a.png") {
		t.Errorf("expected steemit url to be reversed:\n%s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := strings.Fields(lines[len(lines)-1])
	if len(last) != 2 || last[0] != "-" || last[1] != "http://plain.example/b.png" {
		t.Errorf("expected plain url to pass through, got %q", lines[len(lines)-1])
	}
}

func TestPrintInstances(t *testing.T) {
	var out bytes.Buffer
	instances := []domain.ResourceInstance{
		{ID: "1", State: domain.StateSucceeded, CurrentSource: "http://a/x.png"},
		{ID: "2", State: domain.StateFailed, FailureReason: domain.ReasonExhausted, LastReason: domain.ReasonTimeout, CurrentSource: "http://b/y.png"},
	}
	if err := printInstances(&out, instances); err != nil {
		t.Fatalf("printInstances failed: %v", err)
	}
	if !strings.Contains(out.String(), "direct") || !strings.Contains(out.String(), "exhausted (timeout)") {
		t.Errorf("unexpected table:\n%s", out.String())
	}
}

func TestResolveCommand_KeepsArgumentOrder(t *testing.T) {
	urls := []string{
		"data:image/png;base64,Q0M=",
		"data:image/png;base64,QUE=",
		"data:image/png;base64,QkI=",
	}
	out := run(t, append([]string{"resolve"}, urls...)...)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(urls)+1 {
		t.Fatalf("expected header and %d rows, got:\n%s", len(urls), out)
	}
	for i, u := range urls {
		fields := strings.Fields(lines[i+1])
		if len(fields) < 6 {
			t.Fatalf("short row %q", lines[i+1])
		}
		if want := fmt.Sprintf("%03d", i+1); fields[0] != want {
			t.Errorf("row %d: expected id %s, got %s", i, want, fields[0])
		}
		if fields[1] != string(domain.StateFiltered) {
			t.Errorf("row %d: expected filtered, got %s", i, fields[1])
		}
		if fields[5] != u {
			t.Errorf("row %d: expected target %s, got %s", i, u, fields[5])
		}
	}
}
