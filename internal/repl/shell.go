// Package repl is the interactive shell that shares the namespace with the
// reload engine.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"github.com/peterh/liner"

	"github.com/itsmostafa/funpad/internal/namespace"
	"github.com/itsmostafa/funpad/internal/script"
)

const (
	promptMain = "funpad> "
	promptCont = "   ...> "
)

const helpText = `Commands:
  :help        Show this help
  :ls          List the namespace
  :src <name>  Show the recorded source of a name
  :quit        Exit the shell
Anything else is evaluated as JavaScript in the shared namespace.`

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// LineReader reads one line of input. *liner.State implements it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// Options configures a Shell.
type Options struct {
	Runtime *script.Runtime
	Store   *namespace.Store

	// Output defaults to os.Stdout
	Output io.Writer

	// HistoryPath is loaded at start and written at exit; empty disables it
	HistoryPath string

	Logger *slog.Logger
}

// Shell evaluates input in the shared runtime and writes every name it
// declares or assigns at top level to the namespace.
type Shell struct {
	runtime *script.Runtime
	store   *namespace.Store
	out     io.Writer
	history string
	logger  *slog.Logger
}

// New creates a Shell.
func New(opts Options) (*Shell, error) {
	if opts.Runtime == nil {
		return nil, errors.New("new shell: runtime is nil")
	}
	if opts.Store == nil {
		return nil, errors.New("new shell: store is nil")
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Shell{
		runtime: opts.Runtime,
		store:   opts.Store,
		out:     opts.Output,
		history: opts.HistoryPath,
		logger:  opts.Logger,
	}, nil
}

// Eval runs code and returns its formatted completion value, or "" when the
// value is undefined. Cancelling ctx interrupts a running evaluation.
func (s *Shell) Eval(ctx context.Context, code string) (string, error) {
	prog, err := script.Parse("<repl>", code)
	if err != nil {
		return "", err
	}
	scan := script.ScanProgram(prog, code)
	src := rewriteForShell(prog, code)

	var out string
	err = s.runtime.Do(func(vm *goja.Runtime) error {
		// Runs last, once any interrupt has been cleared.
		defer s.store.Refresh()

		stop := context.AfterFunc(ctx, func() {
			vm.Interrupt("evaluation cancelled")
		})
		defer func() {
			if !stop() {
				vm.ClearInterrupt()
			}
		}()

		val, err := vm.RunString(src)
		if err != nil {
			var interrupted *goja.InterruptedError
			if errors.As(err, &interrupted) {
				return fmt.Errorf("execution interrupted: %v", interrupted.Value())
			}
			return err
		}

		s.publish(vm, scan)
		if val != nil && !goja.IsUndefined(val) {
			out = script.FormatValue(val)
		}
		return nil
	})
	return out, err
}

func (s *Shell) publish(vm *goja.Runtime, scan script.Scan) {
	names := make([]string, 0, len(scan.Declarations)+len(scan.Assigned))
	for _, d := range scan.Declarations {
		names = append(names, d.Name)
	}
	names = append(names, scan.Assigned...)

	for _, name := range names {
		v := vm.Get(name)
		if v == nil {
			continue
		}
		s.store.Set(name, v)
		s.logger.Debug("shell wrote symbol", "name", name)
	}
}

// Command runs a ':' command. quit is set by :quit.
func (s *Shell) Command(line string) (out string, quit bool) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), ":"))
	if len(fields) == 0 {
		return "unknown command. Type :help for help.", false
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "q", "exit":
		return "", true
	case "help", "h":
		return helpText, false
	case "ls":
		return s.listing(), false
	case "src":
		if len(fields) < 2 {
			return "usage: :src <name>", false
		}
		return s.source(fields[1]), false
	default:
		return fmt.Sprintf("unknown command :%s. Type :help for help.", fields[0]), false
	}
}

func (s *Shell) listing() string {
	snap := s.store.Snapshot()
	if len(snap) == 0 {
		return dimStyle.Render("(empty)")
	}
	width := 0
	for _, e := range snap {
		width = max(width, len(e.Name))
	}
	var b strings.Builder
	for i, e := range snap {
		if i > 0 {
			b.WriteByte('\n')
		}
		pad := strings.Repeat(" ", width-len(e.Name))
		fmt.Fprintf(&b, "%s%s  %s  %s", nameStyle.Render(e.Name), pad, dimStyle.Render(fmt.Sprintf("%-8s", e.Kind)), e.Preview)
	}
	return b.String()
}

func (s *Shell) source(name string) string {
	v, ok := s.store.Get(name)
	if !ok {
		return fmt.Sprintf("%s is not defined", name)
	}
	if src, ok := s.store.PriorSource(v); ok {
		return src
	}
	return dimStyle.Render(fmt.Sprintf("no recorded source for %s", name))
}

// Run reads input until :quit, end of input or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if s.history != "" {
		if f, err := os.Open(s.history); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(s.history); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			} else {
				s.logger.Warn("failed to save shell history", "path", s.history, "error", err)
			}
		}()
	}

	return s.Loop(ctx, ln)
}

// Loop is Run over an arbitrary LineReader.
func (s *Shell) Loop(ctx context.Context, r LineReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		code, ok := readByParseProbe(r)
		if !ok {
			fmt.Fprintln(s.out)
			return nil
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		r.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			out, quit := s.Command(trimmed)
			if quit {
				return nil
			}
			fmt.Fprintln(s.out, out)
			continue
		}

		out, err := s.Eval(ctx, code)
		if err != nil {
			fmt.Fprintln(s.out, errorStyle.Render(formatError(err)))
			continue
		}
		if out != "" {
			fmt.Fprintln(s.out, out)
		}
	}
}

// readByParseProbe collects lines until they parse or fail for a reason other
// than running out of input. ok is false at end of input.
func readByParseProbe(r LineReader) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := r.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			b.Reset()
			continue
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if _, perr := script.Parse("<repl>", src); perr != nil && incomplete(perr) {
			continue
		}
		return src, true
	}
}

func incomplete(err error) bool {
	var list parser.ErrorList
	if !errors.As(err, &list) {
		return false
	}
	for _, e := range list {
		if strings.Contains(e.Message, "Unexpected end of input") {
			return true
		}
	}
	return false
}

func formatError(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return strings.TrimRight(ex.String(), "\n")
	}
	return err.Error()
}

// rewriteForShell makes top-level declarations redefinable: let and const
// compile as var, and class declarations become var-bound class expressions.
func rewriteForShell(prog *ast.Program, src string) string {
	src = script.RewriteLexical(prog, src, "var")

	type insert struct {
		at   int
		text string
	}
	var inserts []insert
	for _, stmt := range prog.Body {
		decl, ok := stmt.(*ast.ClassDeclaration)
		if !ok || decl.Class.Name == nil {
			continue
		}
		inserts = append(inserts,
			insert{at: int(decl.Idx0()) - 1, text: fmt.Sprintf("var %s = ", decl.Class.Name.Name.String())},
			insert{at: int(decl.Idx1()) - 1, text: ";"},
		)
	}
	sort.Slice(inserts, func(i, j int) bool { return inserts[i].at > inserts[j].at })
	for _, in := range inserts {
		if in.at < 0 || in.at > len(src) {
			continue
		}
		src = src[:in.at] + in.text + src[in.at:]
	}
	return src
}
