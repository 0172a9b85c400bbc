// Package formula compiles and executes player-authored scoring formulas.
//
// Formulas are JavaScript run on goja. Compilation is a three-stage,
// fail-closed pipeline (entry-point presence, syntax, security deny-list);
// only artifacts that clear all three may ever be executed. Execution
// happens in a fresh, capability-scoped runtime per invocation — see
// sandbox.go.
package formula

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
)

// EntryFunction is the function every formula must define. It receives one
// scoring-context argument and returns a number.
const EntryFunction = "calculateScore"

// MaxSourceLines is the complexity ceiling; longer sources are rejected as
// a security violation before compilation.
const MaxSourceLines = 1000

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a line/column-tagged compiler message. Positions are 1-based.
type Diagnostic struct {
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// CompilationResult is the outcome of the compile pipeline. Program is
// non-nil only when OK is true, i.e. the source passed syntax compilation
// AND security validation.
type CompilationResult struct {
	OK          bool               `json:"ok"`
	Program     *goja.Program      `json:"-"`
	Error       string             `json:"error,omitempty"`
	Diagnostics []Diagnostic       `json:"diagnostics,omitempty"`
	Violation   *SecurityViolation `json:"violation,omitempty"`
}

// bannedConstructs maps deny-listed identifiers to the reason they are
// blocked. Matching is word-bounded over the raw source: crude, but
// fail-closed — a formula has no legitimate use for any of these names.
var bannedConstructs = map[string]string{
	"eval":           "dynamic code evaluation",
	"Function":       "dynamic code evaluation",
	"constructor":    "dynamic code evaluation",
	"setTimeout":     "timers",
	"setInterval":    "timers",
	"setImmediate":   "timers",
	"fetch":          "network access",
	"XMLHttpRequest": "network access",
	"WebSocket":      "network access",
	"require":        "module loading",
	"import":         "module loading",
	"globalThis":     "ambient global object",
	"window":         "ambient global object",
	"document":       "ambient global object",
	"process":        "host process access",
	"localStorage":   "persistent storage",
	"sessionStorage": "persistent storage",
	"indexedDB":      "persistent storage",
}

var bannedPattern = regexp.MustCompile(buildBannedPattern())

func buildBannedPattern() string {
	names := make([]string, 0, len(bannedConstructs))
	for name := range bannedConstructs {
		names = append(names, regexp.QuoteMeta(name))
	}
	return `\b(` + strings.Join(names, "|") + `)\b`
}

// Compile runs the full pipeline: entry-point presence check, syntactic
// compilation with 1-based line/column diagnostics, then security
// validation. Any error-severity diagnostic or deny-list hit fails the
// compile; the artifact is only returned when every stage passed.
func Compile(source string) CompilationResult {
	// Stage 1: the required entry function must at least be mentioned.
	if !strings.Contains(source, EntryFunction) {
		return CompilationResult{
			Error: fmt.Sprintf("formula must define a %s(ctx) function", EntryFunction),
		}
	}

	// Stage 2: parse and compile.
	ast, err := parser.ParseFile(nil, "formula.js", source, 0)
	if err != nil {
		return CompilationResult{
			Error:       fmt.Sprintf("syntax error: %v", err),
			Diagnostics: diagnosticsFromParseError(err),
		}
	}

	// Non-strict: formulas are casual scripts, and the sandbox relies on
	// loose-mode `this` binding to the (scrubbed) global object.
	program, err := goja.CompileAST(ast, false)
	if err != nil {
		return CompilationResult{
			Error:       fmt.Sprintf("compile error: %v", err),
			Diagnostics: diagnosticsFromParseError(err),
		}
	}

	// Stage 3: security validation. The artifact is dropped on any hit.
	if v := validateSecurity(source); v != nil {
		return CompilationResult{
			Error:     v.Error(),
			Violation: v,
		}
	}

	return CompilationResult{OK: true, Program: program}
}

// validateSecurity scans the source against the deny-list and the
// complexity ceiling. Returns nil when the source is clean.
func validateSecurity(source string) *SecurityViolation {
	if lines := strings.Count(source, "\n") + 1; lines > MaxSourceLines {
		return &SecurityViolation{
			Construct: "source-size",
			Message:   fmt.Sprintf("formula exceeds %d lines (%d)", MaxSourceLines, lines),
		}
	}
	if m := bannedPattern.FindString(source); m != "" {
		return &SecurityViolation{
			Construct: m,
			Message:   fmt.Sprintf("forbidden construct %q (%s)", m, bannedConstructs[m]),
		}
	}
	return nil
}

// diagnosticsFromParseError converts a goja parser error list into
// positioned diagnostics. Non-list errors become a single position-less
// entry at 1:1.
func diagnosticsFromParseError(err error) []Diagnostic {
	var list parser.ErrorList
	if !errors.As(err, &list) {
		return []Diagnostic{{Line: 1, Column: 1, Message: err.Error(), Severity: SeverityError}}
	}
	diags := make([]Diagnostic, 0, len(list))
	for _, e := range list {
		diags = append(diags, Diagnostic{
			Line:     e.Position.Line,
			Column:   e.Position.Column,
			Message:  e.Message,
			Severity: SeverityError,
		})
	}
	return diags
}
