package script

import (
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja/token"
)

// DeclKind is the syntactic form that introduced a top-level binding.
type DeclKind string

const (
	DeclFunction DeclKind = "function"
	DeclClass    DeclKind = "class"
	DeclVar      DeclKind = "var"
	DeclLet      DeclKind = "let"
	DeclConst    DeclKind = "const"
)

// Declaration is one top-level binding of a program.
type Declaration struct {
	Name string
	Kind DeclKind

	// Source is the declaration as written: the whole function or class
	// declaration, or "name = initializer" for variable bindings, followed
	// by any later declarations and assignments of the same name.
	Source string

	// Alias is set when the initializer only names an existing value
	// (x, a.b, a[b]); such bindings do not create anything new.
	Alias bool
}

// Scan is the top-level shape of a parsed program.
type Scan struct {
	Declarations []Declaration

	// Assigned lists identifiers assigned by top-level expression statements.
	Assigned []string
}

// Parse parses src as a script. Syntax errors are returned as parser.ErrorList
// with file:line:col positions.
func Parse(filename, src string) (*ast.Program, error) {
	return parser.ParseFile(nil, filename, src, 0)
}

// ScanProgram lists the top-level declarations and assignments of prog.
// Destructuring patterns are skipped.
//
// A name's Source covers every top-level statement that writes it: repeated
// declarations and plain "name = ..." statements are appended in order, so an
// edit to any of them changes the text.
func ScanProgram(prog *ast.Program, src string) Scan {
	var scan Scan
	index := make(map[string]int)

	// add records d, or merges it into the first declaration of the same
	// name. init is false for bindings without an initializer, which leave
	// the value alone.
	add := func(d Declaration, init bool) {
		if d.Name == "" {
			return
		}
		i, ok := index[d.Name]
		if !ok {
			index[d.Name] = len(scan.Declarations)
			scan.Declarations = append(scan.Declarations, d)
			return
		}
		prev := &scan.Declarations[i]
		prev.Source = joinSource(prev.Source, d.Source)
		if init {
			prev.Alias = d.Alias
		}
	}

	bindings := func(kind DeclKind, list []*ast.Binding) {
		for _, b := range list {
			id, ok := b.Target.(*ast.Identifier)
			if !ok {
				continue
			}
			add(Declaration{
				Name:   id.Name.String(),
				Kind:   kind,
				Source: sliceSource(src, b),
				Alias:  isAlias(b.Initializer),
			}, b.Initializer != nil)
		}
	}

	for _, stmt := range prog.Body {
		switch s := stmt.(type) {
		case *ast.FunctionDeclaration:
			if s.Function.Name != nil {
				add(Declaration{Name: s.Function.Name.Name.String(), Kind: DeclFunction, Source: sliceSource(src, s)}, true)
			}
		case *ast.ClassDeclaration:
			if s.Class.Name != nil {
				add(Declaration{Name: s.Class.Name.Name.String(), Kind: DeclClass, Source: sliceSource(src, s)}, true)
			}
		case *ast.VariableStatement:
			bindings(DeclVar, s.List)
		case *ast.LexicalDeclaration:
			if s.Token == token.CONST {
				bindings(DeclConst, s.List)
			} else {
				bindings(DeclLet, s.List)
			}
		}
	}

	// Assignments go in a second pass: var and function declarations are
	// hoisted, so an assignment may come before the declaration it writes.
	for _, stmt := range prog.Body {
		s, ok := stmt.(*ast.ExpressionStatement)
		if !ok {
			continue
		}
		assign, ok := s.Expression.(*ast.AssignExpression)
		if !ok {
			continue
		}
		id, ok := assign.Left.(*ast.Identifier)
		if !ok {
			continue
		}
		name := id.Name.String()
		scan.Assigned = append(scan.Assigned, name)

		i, ok := index[name]
		if !ok {
			continue
		}
		d := &scan.Declarations[i]
		d.Source = joinSource(d.Source, sliceSource(src, s))
		if assign.Operator == token.ASSIGN {
			d.Alias = isAlias(assign.Right)
		}
	}

	return scan
}

// RewriteLexical replaces the keyword of every top-level let/const
// declaration with keyword ("let" or "var"), padding with spaces so that
// every offset in the program stays where it was.
func RewriteLexical(prog *ast.Program, src, keyword string) string {
	buf := []byte(src)
	for _, stmt := range prog.Body {
		decl, ok := stmt.(*ast.LexicalDeclaration)
		if !ok {
			continue
		}
		old := "let"
		if decl.Token == token.CONST {
			old = "const"
		}
		if len(keyword) > len(old) {
			continue
		}
		off := int(decl.Idx) - 1
		if off < 0 || off+len(old) > len(buf) || string(buf[off:off+len(old)]) != old {
			continue
		}
		copy(buf[off:], keyword)
		for i := off + len(keyword); i < off+len(old); i++ {
			buf[i] = ' '
		}
	}
	return string(buf)
}

func joinSource(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n" + b
}

func isAlias(init ast.Expression) bool {
	switch init.(type) {
	case *ast.Identifier, *ast.DotExpression, *ast.BracketExpression:
		return true
	}
	return false
}

// sliceSource returns the text of n. ParseFile without a file set uses base 1.
func sliceSource(src string, n ast.Node) string {
	from := int(n.Idx0()) - 1
	to := int(n.Idx1()) - 1
	if from < 0 {
		from = 0
	}
	if to > len(src) {
		to = len(src)
	}
	if from >= to {
		return ""
	}
	return src[from:to]
}
