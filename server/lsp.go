package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/funge/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "funge-lsp"

// LspServer gives editors opcode documentation and static checks for
// funge programs. It never executes a document.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
	log     commonlog.Logger
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: "0.1.0",
		log:     commonlog.GetLogger("funge.lsp"),
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
	commonlog.NewInfoMessage(0, "funge LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
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
	s.log.Info("shutting down")
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

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	b, ok := cellAt(text, params.Position)
	if !ok {
		return nil, nil
	}

	pos := params.Position
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: hoverText(b),
		},
		Range: &protocol.Range{
			Start: pos,
			End:   protocol.Position{Line: pos.Line, Character: pos.Character + 1},
		},
	}, nil
}

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	if _, ok := s.document(params.TextDocument.URI); !ok {
		return nil, nil
	}
	return completionItems(), nil
}

// hoverText renders the documentation for one grid cell.
func hoverText(b byte) string {
	op := vm.Opcode(b)
	info := vm.GetOpcodeInfo(op)

	var sb strings.Builder
	if isPrintable(b) {
		fmt.Fprintf(&sb, "**%s** `%c`", info.Name, b)
	} else {
		fmt.Fprintf(&sb, "**%s**", info.Name)
	}
	sb.WriteString("\n\n")
	sb.WriteString(info.Doc)
	if op.IsKnown() {
		fmt.Fprintf(&sb, "\n\nStack: pops %d, pushes %s", info.StackPop, stackPushText(info.StackPush))
	}
	return sb.String()
}

func stackPushText(n int) string {
	if n < 0 {
		return "variable"
	}
	return fmt.Sprintf("%d", n)
}

// completionItems lists the instruction set, ordered by byte value.
func completionItems() []protocol.CompletionItem {
	ops := vm.AllOpcodes()
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })

	items := make([]protocol.CompletionItem, 0, len(ops))
	kind := protocol.CompletionItemKindOperator
	for _, op := range ops {
		info := vm.GetOpcodeInfo(op)
		label := string([]byte{byte(op)})
		detail := info.Name
		doc := info.Doc
		items = append(items, protocol.CompletionItem{
			Label:         label,
			Kind:          &kind,
			Detail:        &detail,
			Documentation: doc,
			InsertText:    &label,
		})
	}
	return items
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := checkProgram(text)
	if len(diagnostics) > 0 {
		s.log.Debugf("%s: %d diagnostics", uri, len(diagnostics))
	}
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// checkProgram performs static checks on a program's source. A program
// without '@' can only stop on a zero divisor or a fatal error, so it gets
// a warning; cells outside ASCII get a hint since they always act as no-ops.
func checkProgram(text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	grid, err := vm.FromSource(text)
	if err != nil {
		return diagnostics
	}

	hasEnd := false
	for y := 0; y < grid.Height(); y++ {
		for x, b := range grid.Row(y) {
			if b == byte(vm.OpEnd) {
				hasEnd = true
			}
			if b >= 0x80 {
				diagnostics = append(diagnostics, diagnostic(
					protocol.DiagnosticSeverityHint,
					cellRange(y, x),
					fmt.Sprintf("byte 0x%02X is not an instruction and is skipped", b),
				))
			}
		}
	}

	if !hasEnd {
		diagnostics = append(diagnostics, diagnostic(
			protocol.DiagnosticSeverityWarning,
			cellRange(0, 0),
			"program has no '@' and may never halt",
		))
	}
	return diagnostics
}

func diagnostic(severity protocol.DiagnosticSeverity, r protocol.Range, msg string) protocol.Diagnostic {
	source := lspName
	return protocol.Diagnostic{
		Range:    r,
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

// cellRange covers the single grid cell at (x, y). Program columns are
// byte offsets.
func cellRange(y, x int) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(y), Character: protocol.UInteger(x)},
		End:   protocol.Position{Line: protocol.UInteger(y), Character: protocol.UInteger(x + 1)},
	}
}

// --- Text extraction helpers ---

// cellAt returns the program byte under the cursor. Positions past the end
// of a line fall in the grid's space padding and report no cell.
func cellAt(text string, pos protocol.Position) (byte, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return 0, false
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col >= len(line) {
		return 0, false
	}
	return line[col], true
}

func isPrintable(b byte) bool {
	return b >= 0x20 && b <= 0x7E
}

func boolPtr(b bool) *bool {
	return &b
}
