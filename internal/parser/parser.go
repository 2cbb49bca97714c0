package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"strings"

	"github.com/dshills/ctxgraph/pkg/types"
)

// LanguageGo is the Language recorded on Go entities
const LanguageGo = "go"

// Metadata keys set on Go entities
const (
	MetaExported = "exported"
	MetaReceiver = "receiver"
	MetaPackage  = "package"
	MetaPatterns = "patterns"
)

// FileInfo locates a source file within its project
type FileInfo struct {
	Path       string // Path to read from disk
	RelPath    string // Project relative path, used in entity ids
	ImportPath string // Import path of the file's package, used in qualified names
}

// Parser extracts entities and relationships from Go source files.
// It holds no state between calls and is safe for concurrent use.
type Parser struct{}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{}
}

// ParseFile reads and parses a Go source file
func (p *Parser) ParseFile(info FileInfo) (*types.ParseResult, error) {
	content, err := os.ReadFile(info.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.ParseSource(info, content)
}

// ParseSource parses Go source. Syntax errors are recorded in the result and
// whatever the partial AST yields is still extracted.
func (p *Parser) ParseSource(info FileInfo, src []byte) (*types.ParseResult, error) {
	result := &types.ParseResult{}
	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, info.RelPath, src, parser.ParseComments)
	if err != nil {
		result.AddError(info.RelPath, 0, 0, fmt.Sprintf("syntax error: %v", err))
	}
	if file == nil || file.Name == nil {
		return result, nil
	}

	result.PackageName = file.Name.Name
	e := &extractor{
		fset:       fset,
		src:        src,
		info:       info,
		pkgName:    file.Name.Name,
		fileID:     FileID(info.RelPath),
		imports:    make(map[string]string),
		localTypes: make(map[string]string),
		seen:       make(map[string]int),
		result:     result,
	}
	e.extract(file)
	return result, nil
}

type extractor struct {
	fset    *token.FileSet
	src     []byte
	info    FileInfo
	pkgName string
	fileID  string

	imports    map[string]string // Local package name to import path
	localTypes map[string]string // Type name to entity id, for this file
	seen       map[string]int    // Local id counts, for repeated names such as init
	result     *types.ParseResult
}

func (e *extractor) extract(file *ast.File) {
	e.addPackageAndFile(file)
	e.addImports(file)

	// Types first so methods can attach to types declared in this file
	for _, decl := range file.Decls {
		if gen, ok := decl.(*ast.GenDecl); ok {
			e.extractGenDecl(gen)
		}
	}
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			e.extractFunction(fn)
		}
	}
}

func (e *extractor) addPackageAndFile(file *ast.File) {
	pkg := types.Entity{
		ID:            PackageID(e.info.ImportPath),
		Type:          types.EntityPackage,
		Name:          e.pkgName,
		QualifiedName: e.info.ImportPath,
		Language:      LanguageGo,
		Signature:     "package " + e.pkgName,
	}
	if file.Doc != nil {
		pkg.Summary = docSummary(file.Doc)
	}

	lines := strings.Count(string(e.src), "\n")
	if len(e.src) > 0 && e.src[len(e.src)-1] != '\n' {
		lines++
	}
	f := types.Entity{
		ID:            e.fileID,
		Type:          types.EntityFile,
		Name:          baseName(e.info.RelPath),
		QualifiedName: e.info.RelPath,
		FilePath:      e.info.RelPath,
		StartLine:     1,
		EndLine:       max(lines, 1),
		Language:      LanguageGo,
		Signature:     "package " + e.pkgName,
		Summary:       pkg.Summary,
		Metadata:      map[string]string{MetaPackage: e.info.ImportPath},
	}

	e.result.Entities = append(e.result.Entities, pkg, f)
	e.relate(pkg.ID, f.ID, types.RelContains)
}

func (e *extractor) addImports(file *ast.File) {
	e.result.Imports = make([]types.Import, 0, len(file.Imports))
	for _, imp := range file.Imports {
		spec := types.Import{Path: strings.Trim(imp.Path.Value, `"`)}
		local := DefaultImportName(spec.Path)
		if imp.Name != nil {
			spec.Alias = imp.Name.Name
			local = imp.Name.Name
		}
		e.result.Imports = append(e.result.Imports, spec)

		if local != "_" && local != "." {
			e.imports[local] = spec.Path
		}
		e.refer(e.fileID, spec.Path, types.RelImports, false)
	}
}

// extractGenDecl extracts type, const, and var declarations
func (e *extractor) extractGenDecl(gen *ast.GenDecl) {
	grouped := gen.Lparen.IsValid()
	for _, spec := range gen.Specs {
		var node ast.Node = spec
		doc := specDoc(spec)
		if !grouped {
			node = gen
			if doc == nil {
				doc = gen.Doc
			}
		}
		switch s := spec.(type) {
		case *ast.TypeSpec:
			e.extractTypeSpec(s, node, doc)
		case *ast.ValueSpec:
			e.extractValueSpec(s, node, doc, gen.Tok)
		}
	}
}

func specDoc(spec ast.Spec) *ast.CommentGroup {
	switch s := spec.(type) {
	case *ast.TypeSpec:
		return s.Doc
	case *ast.ValueSpec:
		return s.Doc
	}
	return nil
}

// extractTypeSpec extracts struct, interface, and named type declarations
func (e *extractor) extractTypeSpec(spec *ast.TypeSpec, node ast.Node, doc *ast.CommentGroup) {
	name := spec.Name.Name
	ent := e.newEntity(name, name, node, doc)
	ent.QualifiedName = e.qualify(name)

	switch t := spec.Type.(type) {
	case *ast.StructType:
		ent.Type = types.EntityStruct
		ent.Signature = fmt.Sprintf("type %s struct { ... } // %d fields", name, t.Fields.NumFields())
	case *ast.InterfaceType:
		ent.Type = types.EntityInterface
		ent.Signature = fmt.Sprintf("type %s interface { ... } // %d methods", name, t.Methods.NumFields())
	default:
		ent.Type = types.EntityTypeDef
		ent.Signature = fmt.Sprintf("type %s %s", name, exprString(spec.Type))
	}

	for _, tag := range DetectPatterns(name, ent.Type) {
		ent.Metadata[MetaPatterns] = addPattern(ent.Metadata[MetaPatterns], tag)
	}
	st, isStruct := spec.Type.(*ast.StructType)
	if isStruct && IsEntityLikeStruct(structFieldNames(st)) {
		ent.Metadata[MetaPatterns] = addPattern(ent.Metadata[MetaPatterns], PatternEntity)
	}

	e.localTypes[name] = ent.ID
	e.add(ent)

	if isStruct {
		e.extractStructFields(ent, st)
	}
	if it, ok := spec.Type.(*ast.InterfaceType); ok {
		e.extractInterfaceMethods(ent, it)
	}
}

// structFieldNames lists declared and embedded field names
func structFieldNames(st *ast.StructType) []string {
	if st.Fields == nil {
		return nil
	}
	var names []string
	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			names = append(names, embeddedName(field.Type))
			continue
		}
		for _, ident := range field.Names {
			names = append(names, ident.Name)
		}
	}
	return names
}

// extractStructFields adds one field entity per named or embedded field
func (e *extractor) extractStructFields(parent types.Entity, st *ast.StructType) {
	if st.Fields == nil {
		return
	}

	for _, field := range st.Fields.List {
		typ := exprString(field.Type)
		fieldNames := field.Names
		if len(fieldNames) == 0 {
			// embedded field is named after its type
			fieldNames = []*ast.Ident{{Name: embeddedName(field.Type)}}
		}
		for _, ident := range fieldNames {
			if ident.Name == "" || ident.Name == "_" {
				continue
			}
			local := parent.Name + "." + ident.Name
			ent := e.newEntity(ident.Name, local, field, field.Doc)
			ent.Type = types.EntityField
			ent.QualifiedName = e.qualify(local)
			ent.Signature = strings.TrimSpace(ident.Name + " " + typ)
			ent.Metadata[MetaReceiver] = parent.Name
			e.addMember(parent.ID, ent)
		}
	}
}

// extractInterfaceMethods adds one method entity per interface method
func (e *extractor) extractInterfaceMethods(parent types.Entity, it *ast.InterfaceType) {
	if it.Methods == nil {
		return
	}
	for _, m := range it.Methods.List {
		ft, ok := m.Type.(*ast.FuncType)
		if !ok || len(m.Names) == 0 {
			continue
		}
		for _, ident := range m.Names {
			local := parent.Name + "." + ident.Name
			ent := e.newEntity(ident.Name, local, m, m.Doc)
			ent.Type = types.EntityMethod
			ent.QualifiedName = e.qualify(local)
			ent.Signature = ident.Name + funcTypeString(ft)
			ent.Metadata[MetaReceiver] = parent.Name
			e.addMember(parent.ID, ent)
		}
	}
}

// extractValueSpec extracts const and var declarations
func (e *extractor) extractValueSpec(spec *ast.ValueSpec, node ast.Node, doc *ast.CommentGroup, tok token.Token) {
	kind := types.EntityVariable
	keyword := "var"
	if tok == token.CONST {
		kind = types.EntityConstant
		keyword = "const"
	}

	for _, ident := range spec.Names {
		if ident.Name == "_" {
			continue
		}
		ent := e.newEntity(ident.Name, ident.Name, node, doc)
		ent.Type = kind
		ent.QualifiedName = e.qualify(ident.Name)
		switch {
		case spec.Type != nil:
			ent.Signature = fmt.Sprintf("%s %s %s", keyword, ident.Name, exprString(spec.Type))
		case len(spec.Values) > 0:
			ent.Signature = fmt.Sprintf("%s %s = ...", keyword, ident.Name)
		default:
			ent.Signature = keyword + " " + ident.Name
		}
		e.add(ent)
	}
}

// extractFunction extracts function and method declarations with their calls
func (e *extractor) extractFunction(fn *ast.FuncDecl) {
	name := fn.Name.Name
	local := name
	recvType, recvName := "", ""
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		field := fn.Recv.List[0]
		recvType = receiverType(field.Type)
		if len(field.Names) > 0 {
			recvName = field.Names[0].Name
		}
		if recvType != "" {
			local = recvType + "." + name
		}
	}

	ent := e.newEntity(name, local, fn, fn.Doc)
	ent.QualifiedName = e.qualify(local)
	ent.Signature = functionSignature(fn)
	if recvType != "" {
		ent.Type = types.EntityMethod
		ent.Metadata[MetaReceiver] = recvType
	} else {
		ent.Type = types.EntityFunction
	}
	e.add(ent)

	if recvType != "" {
		if typeID, ok := e.localTypes[recvType]; ok {
			e.relate(typeID, ent.ID, types.RelContains)
		} else {
			e.refer(ent.ID, e.qualify(recvType), types.RelContains, true)
		}
	}

	if fn.Body != nil {
		for _, target := range e.calls(fn.Body, recvName, recvType) {
			if target != ent.QualifiedName {
				e.refer(ent.ID, target, types.RelCalls, false)
			}
		}
	}
}

// builtins are never recorded as call targets
var builtins = map[string]bool{
	"append": true, "cap": true, "clear": true, "close": true, "complex": true, "copy": true,
	"delete": true, "imag": true, "len": true, "make": true, "max": true, "min": true,
	"new": true, "panic": true, "print": true, "println": true, "real": true, "recover": true,
}

// calls returns the qualified names a body calls, in first-call order.
// Resolvable forms are local functions, imported package functions and
// methods on the receiver.
func (e *extractor) calls(body *ast.BlockStmt, recvName, recvType string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(qn string) {
		if !seen[qn] {
			seen[qn] = true
			out = append(out, qn)
		}
	}

	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		switch fun := call.Fun.(type) {
		case *ast.Ident:
			if !builtins[fun.Name] {
				add(e.qualify(fun.Name))
			}
		case *ast.SelectorExpr:
			x, ok := fun.X.(*ast.Ident)
			if !ok {
				break
			}
			if recvName != "" && x.Name == recvName {
				add(e.qualify(recvType + "." + fun.Sel.Name))
			} else if path, ok := e.imports[x.Name]; ok {
				add(path + "." + fun.Sel.Name)
			}
		}
		return true
	})
	return out
}

// newEntity fills the fields shared by every symbol
func (e *extractor) newEntity(name, local string, node ast.Node, doc *ast.CommentGroup) types.Entity {
	start := e.fset.Position(node.Pos())
	end := e.fset.Position(node.End())

	id := SymbolID(e.info.RelPath, local)
	e.seen[id]++
	if n := e.seen[id]; n > 1 {
		id = fmt.Sprintf("%s~%d", id, n)
	}

	ent := types.Entity{
		ID:        id,
		Name:      name,
		FilePath:  e.info.RelPath,
		StartLine: start.Line,
		EndLine:   end.Line,
		Language:  LanguageGo,
		Summary:   docSummary(doc),
		Content:   e.slice(start.Offset, end.Offset),
		Metadata: map[string]string{
			MetaExported: fmt.Sprint(token.IsExported(name)),
			MetaPackage:  e.info.ImportPath,
		},
	}
	if doc != nil && doc.Pos() < node.Pos() {
		ent.StartLine = e.fset.Position(doc.Pos()).Line
		ent.Content = e.slice(e.fset.Position(doc.Pos()).Offset, end.Offset)
	}
	return ent
}

func (e *extractor) slice(from, to int) string {
	if from < 0 || to > len(e.src) || from >= to {
		return ""
	}
	return string(e.src[from:to])
}

func (e *extractor) qualify(local string) string {
	return e.info.ImportPath + "." + local
}

// add records a top-level symbol contained by the file
func (e *extractor) add(ent types.Entity) {
	e.result.Entities = append(e.result.Entities, ent)
	e.relate(e.fileID, ent.ID, types.RelContains)
}

// addMember records a symbol contained by a type
func (e *extractor) addMember(parentID string, ent types.Entity) {
	e.result.Entities = append(e.result.Entities, ent)
	e.relate(parentID, ent.ID, types.RelContains)
}

func (e *extractor) relate(source, target, relType string) {
	e.result.Relationships = append(e.result.Relationships, types.Relationship{
		SourceID: source,
		TargetID: target,
		Type:     relType,
		Weight:   types.DefaultRelationshipWeight,
	})
}

func (e *extractor) refer(source, targetQN, relType string, inverse bool) {
	e.result.References = append(e.result.References, types.RelationshipRef{
		SourceID:            source,
		TargetQualifiedName: targetQN,
		Type:                relType,
		Inverse:             inverse,
	})
}

// docSummary returns the first paragraph of a doc comment
func docSummary(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	text := strings.TrimSpace(doc.Text())
	if i := strings.Index(text, "\n\n"); i >= 0 {
		text = text[:i]
	}
	return strings.Join(strings.Fields(text), " ")
}

func baseName(relPath string) string {
	if i := strings.LastIndex(relPath, "/"); i >= 0 {
		return relPath[i+1:]
	}
	return relPath
}
