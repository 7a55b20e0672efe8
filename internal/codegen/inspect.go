package codegen

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/tools/go/packages"
)

// identifiers the generated code declares itself
var reserved = map[string]bool{
	"p": true, "s": true, "g": true, "rt": true, "base": true,
	"values": true, "err": true, "proxy": true, "call": true, "dispatch": true,
}

// Load type-checks the package in dir and inspects names in it
func Load(ctx context.Context, dir string, names []string) (*Model, error) {
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode:    packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
	}

	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}
	if len(pkgs) != 1 {
		return nil, fmt.Errorf("load %s: expected one package, got %d", dir, len(pkgs))
	}

	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("load %s: %w", dir, pkg.Errors[0])
	}
	return Inspect(pkg.Types, pkg.Syntax, names)
}

// Inspect builds the model of names in pkg. files are the parsed sources of
// pkg; they are only used to read the literal lists returned by FinalMethods
// and may be nil.
func Inspect(pkg *types.Package, files []*ast.File, names []string) (*Model, error) {
	model := &Model{Package: pkg}

	for _, name := range names {
		obj, ok := pkg.Scope().Lookup(name).(*types.TypeName)
		if !ok || obj.IsAlias() {
			return nil, fmt.Errorf("%w: %s.%s", ErrNotFound, pkg.Path(), name)
		}
		if !obj.Exported() {
			return nil, fmt.Errorf("%w: %s is not exported", ErrUnsupported, name)
		}

		named, ok := obj.Type().(*types.Named)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
		}

		var (
			target *Target
			err    error
		)
		switch u := named.Underlying().(type) {
		case *types.Interface:
			target, err = inspectInterface(named, u)
		case *types.Struct:
			target, err = inspectStruct(pkg, named, finalMethods(files, name))
		default:
			err = fmt.Errorf("%w: %s is neither an interface nor a struct", ErrUnsupported, name)
		}
		if err != nil {
			return nil, err
		}
		model.Targets = append(model.Targets, target)
	}
	return model, nil
}

func inspectInterface(named *types.Named, iface *types.Interface) (*Target, error) {
	name := named.Obj().Name()
	if !iface.IsMethodSet() {
		return nil, fmt.Errorf("%w: %s is a constraint", ErrUnsupported, name)
	}

	target := &Target{Name: name, Kind: Interface, TypeParams: typeParamsOf(named)}

	for i := 0; i < iface.NumMethods(); i++ {
		fn := iface.Method(i)
		if !fn.Exported() {
			return nil, fmt.Errorf("%w: %s.%s is not exported", ErrUnsupported, name, fn.Name())
		}
		target.Methods = append(target.Methods, newMethod(fn.Name(), fn.Type().(*types.Signature)))
	}
	return target, nil
}

func inspectStruct(pkg *types.Package, named *types.Named, finals []string) (*Target, error) {
	name := named.Obj().Name()
	target := &Target{Name: name, Kind: Struct, Finals: finals, TypeParams: typeParamsOf(named)}

	// A generic struct is inspected as instantiated with its own type
	// parameters, so method signatures use the declared names.
	var recv types.Type = named
	if tparams := named.TypeParams(); tparams.Len() > 0 {
		targs := make([]types.Type, tparams.Len())
		for i := range targs {
			targs[i] = tparams.At(i)
		}
		inst, err := types.Instantiate(nil, named, targs, false)
		if err != nil {
			return nil, fmt.Errorf("%w: generic struct %s: %v", ErrUnsupported, name, err)
		}
		recv = inst
	}

	mset := types.NewMethodSet(types.NewPointer(recv))
	for i := 0; i < mset.Len(); i++ {
		fn := mset.At(i).Obj().(*types.Func)
		if fn.Name() == "sealedType" && fn.Pkg() != nil && fn.Pkg().Path() == ProxyPath {
			return nil, fmt.Errorf("%w: %s", ErrSealed, name)
		}
		if !fn.Exported() || fn.Name() == "FinalMethods" || contains(finals, fn.Name()) {
			continue
		}
		if fn.Name() == name {
			return nil, fmt.Errorf("%w: method %s.%s collides with the embedded base", ErrUnsupported, name, fn.Name())
		}
		target.Methods = append(target.Methods, newMethod(fn.Name(), mset.At(i).Type().(*types.Signature)))
	}

	target.Constructors = constructors(pkg, named, target.TypeParams)
	return target, nil
}

func typeParamsOf(named *types.Named) []TypeParam {
	var list []TypeParam
	tparams := named.TypeParams()
	for i := 0; i < tparams.Len(); i++ {
		tp := tparams.At(i)
		list = append(list, TypeParam{Name: tp.Obj().Name(), Constraint: tp.Constraint()})
	}
	return list
}

// constructors finds the functions named New<Name>... that return the
// struct or a pointer to it, optionally followed by an error. A constructor
// of a generic struct must declare the same type parameters and return the
// struct instantiated with them.
func constructors(pkg *types.Package, named *types.Named, tparams []TypeParam) []*Constructor {
	prefix := "New" + named.Obj().Name()
	var list []*Constructor

	for _, name := range pkg.Scope().Names() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if rest := name[len(prefix):]; rest != "" {
			if r, _ := utf8.DecodeRuneInString(rest); !unicode.IsUpper(r) {
				continue
			}
		}

		fn, ok := pkg.Scope().Lookup(name).(*types.Func)
		if !ok {
			continue
		}
		sig := fn.Type().(*types.Signature)
		if sig.TypeParams().Len() != len(tparams) {
			continue
		}

		c := &Constructor{Name: name, Variadic: sig.Variadic()}
		res := sig.Results()
		switch {
		case res.Len() == 2 && isError(res.At(1).Type()):
			c.HasError = true
		case res.Len() != 1:
			continue
		}

		elem := res.At(0).Type()
		if ptr, ok := elem.(*types.Pointer); ok {
			elem = ptr.Elem()
			c.Pointer = true
		}
		if !constructs(elem, named, sig, tparams) {
			continue
		}

		c.Params = params(sig.Params())
		list = append(list, c)
	}
	return list
}

func constructs(t types.Type, named *types.Named, sig *types.Signature, tparams []TypeParam) bool {
	if len(tparams) == 0 {
		return types.Identical(t, named)
	}

	n, ok := t.(*types.Named)
	if !ok || n.Origin().Obj() != named.Obj() || n.TypeArgs().Len() != len(tparams) {
		return false
	}
	for i, tp := range tparams {
		fp := sig.TypeParams().At(i)
		if n.TypeArgs().At(i) != types.Type(fp) || fp.Obj().Name() != tp.Name || !types.Identical(fp.Constraint(), tp.Constraint) {
			return false
		}
	}
	return true
}

func newMethod(name string, sig *types.Signature) *Method {
	m := &Method{
		Name:     name,
		Field:    fieldName(name),
		Params:   params(sig.Params()),
		Variadic: sig.Variadic(),
	}
	for i := 0; i < sig.Results().Len(); i++ {
		m.Results = append(m.Results, sig.Results().At(i).Type())
	}
	return m
}

func params(tuple *types.Tuple) []Param {
	list := make([]Param, 0, tuple.Len())
	for i := 0; i < tuple.Len(); i++ {
		v := tuple.At(i)
		name := v.Name()
		if name == "" || name == "_" {
			name = fmt.Sprintf("arg%d", i)
		}
		ident := name
		if reserved[ident] {
			ident += "_"
		}
		list = append(list, Param{Name: name, Ident: ident, Type: v.Type()})
	}
	return list
}

func fieldName(method string) string {
	field := lowerName(method)
	if token.IsKeyword(field) || field == "surrogate" || reserved[field] {
		field += "Method"
	}
	return field
}

// lowerName lowers the leading capitals of name: ID becomes id, HTTPServer
// becomes httpServer.
func lowerName(name string) string {
	runes := []rune(name)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	if n > 1 && n < len(runes) {
		n--
	}
	for i := 0; i < n; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

// finalMethods reads the string literals returned by the FinalMethods method
// of typeName. Lists computed at run time are not seen here; stubs look such
// methods up lazily and fall back to the embedded base.
func finalMethods(files []*ast.File, typeName string) []string {
	for _, f := range files {
		for _, decl := range f.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Name.Name != "FinalMethods" || fn.Recv == nil || fn.Body == nil || len(fn.Recv.List) != 1 {
				continue
			}
			if receiverName(fn.Recv.List[0].Type) != typeName {
				continue
			}
			return returnedStrings(fn.Body)
		}
	}
	return nil
}

func receiverName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return receiverName(e.X)
	case *ast.IndexExpr:
		return receiverName(e.X)
	case *ast.IndexListExpr:
		return receiverName(e.X)
	case *ast.Ident:
		return e.Name
	default:
		return ""
	}
}

func returnedStrings(body *ast.BlockStmt) []string {
	var names []string
	ast.Inspect(body, func(n ast.Node) bool {
		ret, ok := n.(*ast.ReturnStmt)
		if !ok || len(ret.Results) != 1 {
			return true
		}
		lit, ok := ret.Results[0].(*ast.CompositeLit)
		if !ok {
			return true
		}
		for _, elt := range lit.Elts {
			bl, ok := elt.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			if s, err := strconv.Unquote(bl.Value); err == nil {
				names = append(names, s)
			}
		}
		return false
	})
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
