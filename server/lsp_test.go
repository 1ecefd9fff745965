package server

import (
	"errors"
	"strings"
	"testing"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/libeval/compiler"
	"github.com/chazu/libeval/host"
	"github.com/chazu/libeval/vm"
)

func newTestHost() *host.Table {
	t := host.NewTable()
	t.SetVar("clearance", vm.NewNumber(0.2))
	t.Define("U1", map[string]vm.Value{
		"type":  vm.NewString("pad"),
		"width": vm.NewNumber(1.5),
	})
	t.Define("U2", map[string]vm.Value{
		"type": vm.NewString("via"),
	})
	return t
}

func newTestCompiler(h vm.Host) *compiler.Compiler {
	return compiler.New(h, compiler.WithLogger(commonlog.MOCK_LOGGER))
}

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		pos        protocol.Position
		wantPrefix string
		wantMember bool
	}{
		{"simple word", "clear", protocol.Position{Line: 0, Character: 5}, "clear", false},
		{"after operator", "1 + clea", protocol.Position{Line: 0, Character: 8}, "clea", false},
		{"member", "U1.wi", protocol.Position{Line: 0, Character: 5}, "wi", true},
		{"member empty", "U1.", protocol.Position{Line: 0, Character: 3}, "", true},
		{"multi line", "# rules\nU1.ha", protocol.Position{Line: 1, Character: 5}, "ha", true},
		{"cursor at start", "hello", protocol.Position{Line: 0, Character: 0}, "", false},
		{"column past end", "abc", protocol.Position{Line: 0, Character: 40}, "abc", false},
		{"line beyond document", "abc", protocol.Position{Line: 5, Character: 0}, "", false},
		{"empty", "", protocol.Position{Line: 0, Character: 0}, "", false},
		{"crlf", "1\r\nU1.ty\r\n", protocol.Position{Line: 1, Character: 5}, "ty", true},
		{"after non-ascii", "'é' == clea", protocol.Position{Line: 0, Character: 11}, "clea", false},
	}

	for _, tt := range tests {
		prefix, member := extractPrefix(tt.text, tt.pos)
		if prefix != tt.wantPrefix || member != tt.wantMember {
			t.Errorf("%s: extractPrefix = (%q, %v), want (%q, %v)",
				tt.name, prefix, member, tt.wantPrefix, tt.wantMember)
		}
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"middle of word", "clearance > 1", protocol.Position{Line: 0, Character: 3}, "clearance"},
		{"end of word", "clearance", protocol.Position{Line: 0, Character: 9}, "clearance"},
		{"on space", "a  b", protocol.Position{Line: 0, Character: 2}, ""},
		{"second word", "U1.width", protocol.Position{Line: 0, Character: 5}, "width"},
		{"underscore", "my_var + 1", protocol.Position{Line: 0, Character: 2}, "my_var"},
		{"number with unit", "2mm", protocol.Position{Line: 0, Character: 2}, "2mm"},
		{"multi line", "1\nfoo", protocol.Position{Line: 1, Character: 1}, "foo"},
		{"line beyond document", "foo", protocol.Position{Line: 3, Character: 0}, ""},
	}

	for _, tt := range tests {
		if got := extractWord(tt.text, tt.pos); got != tt.want {
			t.Errorf("%s: extractWord = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestIsExpression(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"1 + 2", true},
		{"  U1.width", true},
		{"", false},
		{"   \t", false},
		{"# comment", false},
		{"   # indented comment", false},
	}

	for _, tt := range tests {
		if got := isExpression(tt.line); got != tt.want {
			t.Errorf("isExpression(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestTokenEnd(t *testing.T) {
	tests := []struct {
		line  string
		start int
		want  int
	}{
		{"foo + 1", 0, 3},
		{"foo + 1", 4, 5},
		{"1 + 25", 4, 6},
		{"a", 1, 1},
	}

	for _, tt := range tests {
		if got := tokenEnd(tt.line, tt.start); got != tt.want {
			t.Errorf("tokenEnd(%q, %d) = %d, want %d", tt.line, tt.start, got, tt.want)
		}
	}
}

func TestColumnConversion(t *testing.T) {
	tests := []struct {
		line string
		off  int
		col  protocol.UInteger
	}{
		{"abc", 2, 2},
		{"'é' == x", 3, 2},
		{"'é' == x", 8, 7},
		{"'😀' x", 6, 4},
		{"'😀' x", 7, 5},
		{"ab", 10, 2},
	}

	for _, tt := range tests {
		if got := utf16Column(tt.line, tt.off); got != tt.col {
			t.Errorf("utf16Column(%q, %d) = %d, want %d", tt.line, tt.off, got, tt.col)
		}
		if tt.off <= len(tt.line) {
			if got := byteOffset(tt.line, tt.col); got != tt.off {
				t.Errorf("byteOffset(%q, %d) = %d, want %d", tt.line, tt.col, got, tt.off)
			}
		}
	}
}

func TestLineAtCRLF(t *testing.T) {
	line, ok := lineAt("1 + 2\r\nU1.width\r\n", 1)
	if !ok || line != "U1.width" {
		t.Errorf("lineAt = (%q, %v), want (%q, true)", line, ok, "U1.width")
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Error("boolPtr(true) should return pointer to true")
	}
	if p := boolPtr(false); p == nil || *p {
		t.Error("boolPtr(false) should return pointer to false")
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnose(t *testing.T) {
	c := newTestCompiler(newTestHost())
	text := "# rules\n\nfoo + 1\nU1.width > clearance\nU1.nope"

	diags := diagnose(c, text)
	if len(diags) != 2 {
		t.Fatalf("diagnose returned %d diagnostics, want 2: %+v", len(diags), diags)
	}

	tests := []struct {
		line, start, end protocol.UInteger
		message          string
	}{
		{2, 0, 3, "codegen: Unrecognized item 'foo'"},
		{4, 3, 7, "codegen: Unrecognized property 'nope'"},
	}

	for i, tt := range tests {
		d := diags[i]
		if d.Range.Start.Line != tt.line || d.Range.End.Line != tt.line {
			t.Errorf("diag %d line = %d, want %d", i, d.Range.Start.Line, tt.line)
		}
		if d.Range.Start.Character != tt.start || d.Range.End.Character != tt.end {
			t.Errorf("diag %d range = %d..%d, want %d..%d", i,
				d.Range.Start.Character, d.Range.End.Character, tt.start, tt.end)
		}
		if d.Message != tt.message {
			t.Errorf("diag %d message = %q, want %q", i, d.Message, tt.message)
		}
		if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
			t.Errorf("diag %d severity = %v, want error", i, d.Severity)
		}
	}
}

func TestDiagnoseParseError(t *testing.T) {
	c := newTestCompiler(newTestHost())

	diags := diagnose(c, "1 +\n(2")
	if len(diags) != 2 {
		t.Fatalf("diagnose returned %d diagnostics, want 2", len(diags))
	}
	for i, d := range diags {
		if d.Range.Start.Line != protocol.UInteger(i) {
			t.Errorf("diag %d line = %d, want %d", i, d.Range.Start.Line, i)
		}
		if !strings.HasPrefix(d.Message, "parse: ") {
			t.Errorf("diag %d message = %q, want parse error", i, d.Message)
		}
	}
}

func TestDiagnoseCleanDocument(t *testing.T) {
	c := newTestCompiler(newTestHost())

	for _, text := range []string{
		"U1.width * 2 == 3\nU1.isType('pad')\n",
		"U1.width * 2 == 3\r\nU1.isType('pad')\r\n",
		"1 + 2\r\n# note\r\n\r\n3 > 1\r\n",
	} {
		diags := diagnose(c, text)
		if diags == nil || len(diags) != 0 {
			t.Errorf("diagnose(%q) = %+v, want empty non-nil slice", text, diags)
		}
	}
}

func TestDiagnoseUTF16Range(t *testing.T) {
	c := newTestCompiler(newTestHost())

	tests := []struct {
		text       string
		start, end protocol.UInteger
	}{
		{"'é' == foo", 7, 10},
		{"'😀' == foo", 8, 11},
		{"'😀' == foo\r\n", 8, 11},
	}

	for _, tt := range tests {
		diags := diagnose(c, tt.text)
		if len(diags) != 1 {
			t.Errorf("diagnose(%q) returned %d diagnostics, want 1", tt.text, len(diags))
			continue
		}
		r := diags[0].Range
		if r.Start.Character != tt.start || r.End.Character != tt.end {
			t.Errorf("diagnose(%q) range = %d..%d, want %d..%d",
				tt.text, r.Start.Character, r.End.Character, tt.start, tt.end)
		}
	}
}

// ---------------------------------------------------------------------------
// Completion and hover
// ---------------------------------------------------------------------------

func labels(items []protocol.CompletionItem) []string {
	var names []string
	for _, it := range items {
		names = append(names, it.Label)
	}
	return names
}

func TestComplete(t *testing.T) {
	h := newTestHost()
	units := compiler.DefaultUnits()

	tests := []struct {
		name   string
		prefix string
		member bool
		want   []string
	}{
		{"objects by prefix", "U", false, []string{"U1", "U2"}},
		{"units by prefix", "m", false, []string{"mm", "mil"}},
		{"inch units", "in", false, []string{"in", "inch"}},
		{"methods", "", true, []string{"get", "has", "isType", "matches"}},
		{"methods by prefix", "is", true, []string{"isType"}},
		{"no match", "zz", false, nil},
	}

	for _, tt := range tests {
		got := labels(complete(units, h, tt.prefix, tt.member))
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("%s: complete(%q, %v) = %v, want %v", tt.name, tt.prefix, tt.member, got, tt.want)
		}
	}
}

func TestCompleteKinds(t *testing.T) {
	items := complete(compiler.DefaultUnits(), newTestHost(), "", true)
	for _, it := range items {
		if it.Kind == nil || *it.Kind != protocol.CompletionItemKindMethod {
			t.Errorf("%s: kind = %v, want method", it.Label, it.Kind)
		}
	}

	items = complete(compiler.DefaultUnits(), nil, "mm", false)
	if len(items) != 1 || *items[0].Kind != protocol.CompletionItemKindUnit {
		t.Errorf("complete(mm) = %+v, want one unit item", items)
	}
}

func TestHoverLine(t *testing.T) {
	c := newTestCompiler(newTestHost())

	hover := hoverLine(c, "1 + 2", "")
	if hover == nil {
		t.Fatal("hoverLine returned nil for valid expression")
	}
	content, ok := hover.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatalf("hover contents type = %T, want MarkupContent", hover.Contents)
	}
	if content.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover kind = %q, want markdown", content.Kind)
	}
	if !strings.Contains(content.Value, "**= 3**") {
		t.Errorf("hover should show the result, got %q", content.Value)
	}
	if !strings.Contains(content.Value, "ADD") {
		t.Errorf("hover should show the bytecode, got %q", content.Value)
	}

	// A CRLF document yields the same line without the carriage return.
	line, ok := lineAt("1 + 2\r\n", 0)
	if !ok {
		t.Fatal("lineAt failed on a CRLF document")
	}
	if hover := hoverLine(c, line, ""); hover == nil {
		t.Error("hoverLine returned nil for a CRLF line")
	}
}

func TestHoverLineUnit(t *testing.T) {
	c := newTestCompiler(newTestHost())

	hover := hoverLine(c, "1inch", "inch")
	if hover == nil {
		t.Fatal("hoverLine returned nil")
	}
	content := hover.Contents.(protocol.MarkupContent)
	if !strings.Contains(content.Value, "`inch`: unit ×25.4") {
		t.Errorf("hover should describe the unit, got %q", content.Value)
	}
}

func TestHoverLineCompileError(t *testing.T) {
	c := newTestCompiler(newTestHost())

	if hover := hoverLine(c, "foo + ", "foo"); hover != nil {
		t.Errorf("hoverLine on invalid expression = %+v, want nil", hover)
	}
}

// ---------------------------------------------------------------------------
// CompilerWorker
// ---------------------------------------------------------------------------

func TestCompilerWorkerDo(t *testing.T) {
	w := NewCompilerWorker(newTestCompiler(newTestHost()))
	defer w.Stop()

	result, err := w.Do(func(c *compiler.Compiler) any {
		prog, err := c.Compile("U1.width * 2")
		if err != nil {
			return err
		}
		res, err := prog.Run(vm.NewContext())
		if err != nil {
			return err
		}
		return res.AsDouble()
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if result != 3.0 {
		t.Errorf("result = %v, want 3", result)
	}
}

func TestCompilerWorkerRecoversPanic(t *testing.T) {
	w := NewCompilerWorker(newTestCompiler(newTestHost()))
	defer w.Stop()

	_, err := w.Do(func(c *compiler.Compiler) any {
		panic("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Errorf("Do error = %v, want boom", err)
	}

	// The worker keeps serving after a panic.
	result, err := w.Do(func(c *compiler.Compiler) any { return len(c.Units()) })
	if err != nil {
		t.Fatalf("Do after panic: %v", err)
	}
	if result != 5 {
		t.Errorf("result = %v, want 5", result)
	}
}

func TestCompilerWorkerStopped(t *testing.T) {
	w := NewCompilerWorker(newTestCompiler(newTestHost()))
	w.Stop()

	_, err := w.Do(func(c *compiler.Compiler) any { return nil })
	if !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Do after Stop = %v, want ErrWorkerStopped", err)
	}
}

func TestCompilerWorkerStopTwice(t *testing.T) {
	w := NewCompilerWorker(newTestCompiler(newTestHost()))
	w.Stop()
	w.Stop()

	if _, err := w.Do(func(c *compiler.Compiler) any { return nil }); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Do after Stop = %v, want ErrWorkerStopped", err)
	}
}

func TestLSPShutdownTwice(t *testing.T) {
	s := NewLSP(newTestCompiler(newTestHost()), nil)
	if err := s.shutdown(nil); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := s.shutdown(nil); err != nil {
		t.Errorf("second shutdown: %v", err)
	}
}
