package server

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/libeval/compiler"
	"github.com/chazu/libeval/vm"
)

const lspName = "libeval-lsp"

// Catalog lists the names completion offers besides units.
type Catalog interface {
	Objects() []string
	Functions() []string
}

// LspServer publishes rule-compile diagnostics for rule files. Each line
// of a document that is neither blank nor a '#' comment is one
// expression.
type LspServer struct {
	worker  *CompilerWorker
	catalog Catalog
	log     commonlog.Logger

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server compiling with c. catalog may be nil.
func NewLSP(c *compiler.Compiler, catalog Catalog) *LspServer {
	s := &LspServer{
		worker:  NewCompilerWorker(c),
		catalog: catalog,
		log:     commonlog.GetLogger("libeval.lsp"),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.log.Info("libeval LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}

	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	prefix, member := extractPrefix(text, params.Position)
	if prefix == "" && !member {
		return nil, nil
	}

	result, err := s.worker.Do(func(c *compiler.Compiler) any {
		return complete(c.Units(), s.catalog, prefix, member)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	line, ok := lineAt(text, params.Position.Line)
	if !ok || !isExpression(line) {
		return nil, nil
	}

	word := strings.TrimLeft(extractWord(text, params.Position), "0123456789")
	result, err := s.worker.Do(func(c *compiler.Compiler) any {
		return hoverLine(c, line, word)
	})
	if err != nil || result == nil {
		return nil, nil
	}

	return result.(*protocol.Hover), nil
}

// --- Compiler-backed logic (called on worker goroutine) ---

// complete offers methods after a '.', and objects and units otherwise.
func complete(units compiler.Units, catalog Catalog, prefix string, member bool) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	add := func(name string, kind protocol.CompletionItemKind, detail string) {
		if !strings.HasPrefix(name, prefix) {
			return
		}
		label := name
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	if member {
		if catalog != nil {
			for _, name := range catalog.Functions() {
				add(name, protocol.CompletionItemKindMethod, "method")
			}
		}
		return items
	}

	if catalog != nil {
		for _, name := range catalog.Objects() {
			add(name, protocol.CompletionItemKindVariable, "object")
		}
	}
	for _, u := range units {
		add(u.Name, protocol.CompletionItemKindUnit, fmt.Sprintf("unit (×%g)", u.Factor))
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

// hoverLine compiles and runs one expression and shows its value and
// bytecode. A unit name under the cursor also shows its factor.
func hoverLine(c *compiler.Compiler, line, word string) *protocol.Hover {
	prog, err := c.Compile(line)
	if err != nil {
		return nil
	}

	var b strings.Builder
	res, err := prog.Run(vm.NewContext())
	switch {
	case err != nil:
		fmt.Fprintf(&b, "**error:** %s\n\n", err)
	case res != nil:
		fmt.Fprintf(&b, "**= %s**\n\n", res)
	}
	for _, u := range c.Units() {
		if u.Name == word {
			fmt.Fprintf(&b, "`%s`: unit ×%g\n\n", u.Name, u.Factor)
			break
		}
	}
	b.WriteString("```\n")
	b.WriteString(prog.Dump())
	b.WriteString("```\n")

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func(c *compiler.Compiler) any {
		return diagnose(c, text)
	})
	if err != nil {
		s.log.Errorf("diagnostics for %s: %s", uri, err)
		return
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: result.([]protocol.Diagnostic),
	})
}

// diagnose compiles every expression line of text and converts each
// reported error into a diagnostic spanning the offending token.
func diagnose(c *compiler.Compiler, text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	for n, line := range splitLines(text) {
		if !isExpression(line) {
			continue
		}
		if _, err := c.Compile(line); err == nil {
			continue
		}

		for _, e := range c.Errors() {
			start := e.Offset
			if start < 0 || start > len(line) {
				start = 0
			}
			end := tokenEnd(line, start)

			severity := protocol.DiagnosticSeverityError
			source := lspName
			diagnostics = append(diagnostics, protocol.Diagnostic{
				Range: protocol.Range{
					Start: protocol.Position{Line: protocol.UInteger(n), Character: utf16Column(line, start)},
					End:   protocol.Position{Line: protocol.UInteger(n), Character: utf16Column(line, end)},
				},
				Severity: &severity,
				Source:   &source,
				Message:  fmt.Sprintf("%s: %s", e.Stage, e.Message),
			})
		}
	}
	return diagnostics
}

// isExpression reports whether a document line holds an expression.
func isExpression(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && !strings.HasPrefix(trimmed, "#")
}

// tokenEnd returns the end of the identifier or number starting at start,
// or start+1 for anything else.
func tokenEnd(line string, start int) int {
	end := start
	for end < len(line) {
		r, size := utf8.DecodeRuneInString(line[end:])
		if !isWordChar(r) {
			break
		}
		end += size
	}
	if end == start && end < len(line) {
		_, size := utf8.DecodeRuneInString(line[end:])
		end += size
	}
	return end
}

// --- Text extraction helpers ---

// splitLines splits a document into lines, accepting LF and CRLF endings.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func lineAt(text string, n protocol.UInteger) (string, bool) {
	lines := splitLines(text)
	if int(n) >= len(lines) {
		return "", false
	}
	return lines[n], true
}

// utf16Column converts a byte offset in line to an LSP character
// position, which counts UTF-16 code units.
func utf16Column(line string, off int) protocol.UInteger {
	if off > len(line) {
		off = len(line)
	}
	return protocol.UInteger(len(utf16.Encode([]rune(line[:off]))))
}

// byteOffset converts an LSP character position in line to a byte offset.
func byteOffset(line string, col protocol.UInteger) int {
	units := 0
	for i, r := range line {
		if units >= int(col) {
			return i
		}
		units += len(utf16.Encode([]rune{r}))
	}
	return len(line)
}

// extractPrefix returns the word fragment before the cursor for
// completion, and whether it directly follows a '.'.
func extractPrefix(text string, pos protocol.Position) (string, bool) {
	line, ok := lineAt(text, pos.Line)
	if !ok {
		return "", false
	}
	col := byteOffset(line, pos.Character)

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}

	member := start > 0 && line[start-1] == '.'
	return line[start:col], member
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, ok := lineAt(text, pos.Line)
	if !ok {
		return ""
	}
	col := byteOffset(line, pos.Character)

	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isWordChar(rune(line[end])) {
		end++
	}

	return line[start:end]
}

// isWordChar matches identifier characters. Identifiers are ASCII, so
// byte-wise walks never stop inside a multi-byte character.
func isWordChar(ch rune) bool {
	return ch < utf8.RuneSelf && (unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_')
}

func boolPtr(b bool) *bool {
	return &b
}
