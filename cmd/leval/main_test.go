package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tliron/commonlog"

	"github.com/chazu/libeval/compiler"
	"github.com/chazu/libeval/host"
	"github.com/chazu/libeval/manifest"
	"github.com/chazu/libeval/vm"
)

func testHost() *host.Table {
	t := host.NewTable()
	t.Define("U1", map[string]vm.Value{
		"type":  vm.NewString("pad"),
		"width": vm.NewNumber(1.5),
	})
	return t
}

func testCompiler(h vm.Host) *compiler.Compiler {
	return compiler.New(h, compiler.WithLogger(commonlog.MOCK_LOGGER))
}

func TestEvaluate(t *testing.T) {
	c := testCompiler(testHost())

	tests := []struct {
		expr    string
		want    string
		wantErr bool
	}{
		{"1 + 2 * 3", "7\n", false},
		{"1inch", "25.4\n", false},
		{"U1.width * 2", "3\n", false},
		{"U1.isType('pad')", "1\n", false},
		{"'abc'", "\"abc\"\n", false},
		{"", "1\n", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		err := evaluate(&out, c, tt.expr, false)
		if (err != nil) != tt.wantErr {
			t.Errorf("evaluate(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
		if out.String() != tt.want {
			t.Errorf("evaluate(%q) printed %q, want %q", tt.expr, out.String(), tt.want)
		}
	}
}

func TestEvaluateCompileError(t *testing.T) {
	c := testCompiler(testHost())

	var out bytes.Buffer
	if err := evaluate(&out, c, "1 + foo", false); err == nil {
		t.Fatal("evaluate should fail for an unknown identifier")
	}
	want := "  1 + foo\n      ^\ncodegen error: Unrecognized item 'foo'\n"
	if out.String() != want {
		t.Errorf("evaluate printed %q, want %q", out.String(), want)
	}
}

func TestEvaluateRuntimeError(t *testing.T) {
	h := testHost()
	h.Register("fail", func(ctx *vm.Context, self vm.VarRef) {
		ctx.Pop()
		ctx.Push(ctx.AllocValue())
		if ctx.SP() > 1 {
			ctx.ReportError("boom")
		}
	})
	c := testCompiler(h)

	// Preflight runs on an empty stack; at runtime the left operand is
	// already pushed, so the call fails.
	var out bytes.Buffer
	if err := evaluate(&out, c, "1 + U1.fail('x')", false); err == nil {
		t.Fatal("evaluate should report the runtime error")
	}
	if !strings.Contains(out.String(), "boom") {
		t.Errorf("evaluate printed %q, want runtime error", out.String())
	}
}

func TestEvaluateDump(t *testing.T) {
	c := testCompiler(testHost())

	var out bytes.Buffer
	if err := evaluate(&out, c, "2 * 3", true); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for _, want := range []string{"PUSH NUM", "MUL", "6\n"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("dump output missing %q:\n%s", want, out.String())
		}
	}
}

func TestImageRoundTrip(t *testing.T) {
	h := testHost()
	c := testCompiler(h)
	path := filepath.Join(t.TempDir(), "rule.cbor")

	var log bytes.Buffer
	if err := writeImage(&log, c, "U1.width > 1mm && U1.isType('pad')", path); err != nil {
		t.Fatalf("writeImage: %v (%s)", err, log.String())
	}

	var out bytes.Buffer
	if err := runImageFile(&out, h, path, false); err != nil {
		t.Fatalf("runImageFile: %v", err)
	}
	if out.String() != "1\n" {
		t.Errorf("image result = %q, want %q", out.String(), "1\n")
	}

	// The image binds by name, so a host where U1 changed sees the new value.
	h.Set("U1", "width", vm.NewNumber(0.5))
	out.Reset()
	if err := runImageFile(&out, h, path, false); err != nil {
		t.Fatalf("runImageFile: %v", err)
	}
	if out.String() != "0\n" {
		t.Errorf("image result after update = %q, want %q", out.String(), "0\n")
	}
}

func TestRunImageMissingFile(t *testing.T) {
	var out bytes.Buffer
	err := runImageFile(&out, testHost(), filepath.Join(t.TempDir(), "nope.cbor"), false)
	if err == nil {
		t.Error("runImageFile should fail for a missing file")
	}
}

func TestREPL(t *testing.T) {
	h := testHost()
	c := testCompiler(h)

	in := strings.NewReader("1 + 1\n:units\n:objects\n:dump\n2\n:bogus\nexit\n3\n")
	var out bytes.Buffer
	runREPL(in, &out, c, h, false)

	got := out.String()
	for _, want := range []string{
		">> 2\n",
		"mil    ×0.0254",
		"Objects: U1",
		"Methods: get has isType matches",
		"Bytecode dumps on",
		"PUSH NUM",
		"Unknown command: :bogus",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("REPL output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "\n3\n") {
		t.Errorf("REPL kept evaluating after exit:\n%s", got)
	}
}

func TestREPLTree(t *testing.T) {
	c := testCompiler(testHost())

	var out bytes.Buffer
	handleREPLCommand(&out, c, testHost(), ":tree 1 + 2", false)
	if !strings.Contains(out.String(), "NUMERIC: 1") {
		t.Errorf(":tree output = %q, want the syntax tree", out.String())
	}
}

func TestLoadManifestFallback(t *testing.T) {
	dir := t.TempDir()
	m, err := loadManifest(dir)
	if err != nil {
		t.Fatalf("loadManifest: %v", err)
	}
	if m.Separator() != '.' {
		t.Errorf("Separator = %q, want '.'", m.Separator())
	}

	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte("[compiler]\ndecimal-separator = \",\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	m, err = loadManifest(dir)
	if err != nil {
		t.Fatalf("loadManifest: %v", err)
	}
	if m.Separator() != ',' {
		t.Errorf("Separator = %q, want ','", m.Separator())
	}
}

func TestCatalogFor(t *testing.T) {
	if catalogFor(testHost()) == nil {
		t.Error("catalogFor(Table) = nil")
	}

	s, err := host.OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()
	if err := s.Put("R1", "type", vm.NewString("resistor")); err != nil {
		t.Fatal(err)
	}

	cat := catalogFor(s)
	if cat == nil {
		t.Fatal("catalogFor(Store) = nil")
	}
	if got := strings.Join(cat.Objects(), ","); got != "R1" {
		t.Errorf("Objects = %q, want R1", got)
	}
}

func TestVerbosityFlag(t *testing.T) {
	var v verbosity
	for _, s := range []string{"true", "true"} {
		if err := v.Set(s); err != nil {
			t.Fatal(err)
		}
	}
	if v != 2 {
		t.Errorf("verbosity = %d, want 2", v)
	}
	if err := v.Set("4"); err != nil || v != 4 {
		t.Errorf("Set(4) = %v, verbosity %d", err, v)
	}
	if err := v.Set("x"); err == nil {
		t.Error("Set(x) should fail")
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		args    []string
		code    int
		wantOut string
	}{
		{"evaluates", []string{"-C", dir, "1 + 1"}, 0, "2\n"},
		{"compile error", []string{"-C", dir, "1 + foo"}, 1, ""},
		{"one failure fails the run", []string{"-C", dir, "1", "1 + foo"}, 1, "1\n"},
		{"-o without expression", []string{"-C", dir, "-o", filepath.Join(dir, "x.cbor")}, 2, ""},
		{"unknown flag", []string{"-nope"}, 2, ""},
		{"help", []string{"-h"}, 0, ""},
		{"missing image", []string{"-C", dir, "-run", filepath.Join(dir, "nope.cbor")}, 1, ""},
	}

	for _, tt := range tests {
		var stdout, stderr bytes.Buffer
		code := run(tt.args, strings.NewReader(""), &stdout, &stderr)
		if code != tt.code {
			t.Errorf("%s: run(%q) = %d, want %d (stderr %q)", tt.name, tt.args, code, tt.code, stderr.String())
		}
		if tt.wantOut != "" && !strings.HasPrefix(stdout.String(), tt.wantOut) {
			t.Errorf("%s: run(%q) printed %q, want prefix %q", tt.name, tt.args, stdout.String(), tt.wantOut)
		}
	}
}

func TestRunClosesStoreOnFailure(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "board.db")

	s, err := host.OpenStore(db)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if err := s.Put("R1", "width", vm.NewNumber(1.5)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-C", dir, "-db", db, "R1.width", "1 + foo"}, strings.NewReader(""), &stdout, &stderr); code != 1 {
		t.Fatalf("run = %d, want 1 (stderr %q)", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "1.5\n") {
		t.Errorf("run printed %q, want the stored width first", stdout.String())
	}

	// The failed run released the database, so it can be written again.
	s, err = host.OpenStore(db)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if err := s.Put("R1", "width", vm.NewNumber(2)); err != nil {
		t.Errorf("Put after failed run: %v", err)
	}
}
