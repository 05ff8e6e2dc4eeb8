package cli

import (
	"bytes"
	"strings"
	"testing"
)

func newTestOutput(jsonMode bool) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &Output{jsonMode: jsonMode, w: &out, errW: &errOut}, &out, &errOut
}

func TestOutput_TableFormat(t *testing.T) {
	o, out, _ := newTestOutput(false)

	o.Table([]string{"ID", "STATUS"}, [][]string{
		{"abc", "COMPLETE"},
		{"def", "ERROR"},
	})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "STATUS") {
		t.Errorf("unexpected header line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "--") {
		t.Errorf("expected underline row, got: %q", lines[1])
	}
	if !strings.Contains(lines[2], "abc") || !strings.Contains(lines[3], "ERROR") {
		t.Errorf("unexpected data rows: %q", lines[2:])
	}
}

func TestOutput_PrintHonorsJSONMode(t *testing.T) {
	o, out, _ := newTestOutput(true)

	o.Print([]string{"ID"}, [][]string{{"abc"}}, map[string]string{"id": "abc"})

	got := out.String()
	if !strings.Contains(got, `"id": "abc"`) {
		t.Errorf("expected indented JSON, got: %q", got)
	}
	if strings.Contains(got, "--") {
		t.Errorf("table output must not appear in json mode: %q", got)
	}
}

func TestOutput_MessagesGoToStderr(t *testing.T) {
	o, out, errOut := newTestOutput(false)

	o.Success("Created: abc")
	o.Error("boom")

	if out.Len() != 0 {
		t.Errorf("stdout must stay clean for piping, got: %q", out.String())
	}
	if got := errOut.String(); got != "Created: abc\nerror: boom\n" {
		t.Errorf("unexpected stderr: %q", got)
	}
}
