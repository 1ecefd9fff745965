// leval - compile and evaluate rule expressions
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/libeval/compiler"
	"github.com/chazu/libeval/host"
	"github.com/chazu/libeval/manifest"
	"github.com/chazu/libeval/server"
	"github.com/chazu/libeval/vm"
)

var log = commonlog.GetLogger("libeval.leval")

// verbosity is a flag counting repeated -v occurrences.
type verbosity int

func (v *verbosity) String() string   { return strconv.Itoa(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }

func (v *verbosity) Set(s string) error {
	if s == "true" {
		*v++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*v = verbosity(n)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is the whole CLI. It returns the process exit code so that deferred
// cleanup, such as closing the property store, runs before main exits.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("leval", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var verbose verbosity
	fs.Var(&verbose, "v", "Verbose logging (repeat for more)")
	dir := fs.String("C", ".", "Directory to search for "+manifest.FileName)
	dbPath := fs.String("db", "", "SQLite property store (overrides the manifest)")
	dump := fs.Bool("dump", false, "Print the bytecode of each expression")
	output := fs.String("o", "", "Write the compiled program image of a single expression to file")
	runImage := fs.String("run", "", "Run a compiled program image")
	interactive := fs.Bool("i", false, "Start interactive REPL")
	lspMode := fs.Bool("lsp", false, "Start the language server on stdio")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: leval [options] [expressions...]\n\n")
		fmt.Fprintf(stderr, "Compiles and evaluates rule expressions against the objects of %s.\n\n", manifest.FileName)
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  leval '1mm + 2mil'                  # Evaluate an expression\n")
		fmt.Fprintf(stderr, "  leval -dump \"U1.isType('pad')\"      # Show the bytecode\n")
		fmt.Fprintf(stderr, "  leval -o rule.cbor 'U1.width > 1'   # Save a program image\n")
		fmt.Fprintf(stderr, "  leval -run rule.cbor                # Run a saved image\n")
		fmt.Fprintf(stderr, "  leval -lsp                          # Serve diagnostics over stdio\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	m, err := loadManifest(*dir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	configureLogging(m, int(verbose))

	if *dbPath != "" {
		abs, err := filepath.Abs(*dbPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		m.Database.Path = abs
	}

	h, closeHost, err := m.OpenHost()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeHost()

	c := compiler.New(h, m.CompilerOptions()...)

	if *lspMode {
		srv := server.NewLSP(c, catalogFor(h))
		if err := srv.Run(); err != nil {
			log.Errorf("language server: %s", err)
			return 1
		}
		return 0
	}

	if *runImage != "" {
		if err := runImageFile(stdout, h, *runImage, *dump); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	exprs := fs.Args()
	if *output != "" {
		if len(exprs) != 1 {
			fmt.Fprintf(stderr, "Error: -o needs exactly one expression\n")
			return 2
		}
		if err := writeImage(stderr, c, exprs[0], *output); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	failed := false
	for _, expr := range exprs {
		if err := evaluate(stdout, c, expr, *dump); err != nil {
			failed = true
		}
	}

	if *interactive || len(exprs) == 0 {
		runREPL(stdin, stdout, c, h, *dump)
	}
	if failed {
		return 1
	}
	return 0
}

// loadManifest finds the manifest above dir, or returns an empty one
// anchored at dir when there is none.
func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return m, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return manifest.Parse(nil, abs)
}

// configureLogging applies the -v count, falling back to the manifest's
// [log] section.
func configureLogging(m *manifest.Manifest, verbose int) {
	level := m.Log.Verbosity
	if verbose > 0 {
		level = verbose
	}
	if m.Log.File == "" {
		commonlog.Configure(level, nil)
		return
	}
	path := m.Log.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.Dir, path)
	}
	commonlog.Configure(level, &path)
}

// evaluate compiles and runs one expression, printing its value or the
// errors raised on the way.
func evaluate(w io.Writer, c *compiler.Compiler, expr string, dump bool) error {
	prog, err := c.Compile(expr)
	if err != nil {
		printErrors(w, expr, c.Errors())
		return err
	}
	if dump {
		fmt.Fprint(w, prog.Dump())
	}
	return runProgram(w, prog)
}

func runProgram(w io.Writer, prog *vm.Program) error {
	ctx := vm.NewContext()
	res, err := prog.Run(ctx)
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return err
	}
	fmt.Fprintln(w, res)
	return nil
}

// printErrors prints each compile error under the expression with a
// caret at its offset.
func printErrors(w io.Writer, expr string, errs []*vm.Error) {
	for _, e := range errs {
		if e.Offset >= 0 && e.Offset <= len(expr) {
			fmt.Fprintf(w, "  %s\n  %s^\n", expr, strings.Repeat(" ", e.Offset))
		}
		fmt.Fprintf(w, "%s error: %s\n", e.Stage, e.Message)
	}
}

// writeImage compiles expr and writes its program image to path.
func writeImage(w io.Writer, c *compiler.Compiler, expr, path string) error {
	prog, err := c.Compile(expr)
	if err != nil {
		printErrors(w, expr, c.Errors())
		return err
	}
	data, err := vm.MarshalProgram(prog)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	log.Infof("wrote %d instructions to %s", prog.Len(), path)
	return nil
}

// runImageFile loads a program image, binds it against h and runs it.
func runImageFile(w io.Writer, h vm.Host, path string, dump bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	prog, err := vm.UnmarshalProgram(data, h)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if dump {
		fmt.Fprint(w, prog.Dump())
	}
	return runProgram(w, prog)
}

// ---------------------------------------------------------------------------
// Completion catalog
// ---------------------------------------------------------------------------

// storeCatalog adapts a Store, whose listing can fail, to server.Catalog.
type storeCatalog struct {
	*host.Store
}

func (s storeCatalog) Objects() []string {
	names, err := s.Store.Objects()
	if err != nil {
		log.Errorf("listing objects: %s", err)
	}
	return names
}

func catalogFor(h vm.Host) server.Catalog {
	switch h := h.(type) {
	case *host.Table:
		return h
	case *host.Store:
		return storeCatalog{h}
	}
	return nil
}
