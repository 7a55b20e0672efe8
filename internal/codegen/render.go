package codegen

import (
	"fmt"
	"io"

	"github.com/dave/jennifer/jen"
)

// Header is the first line of every generated file
const Header = "Code generated by proxygen. DO NOT EDIT."

type renderer struct {
	f    *jen.File
	path string
}

// Render writes the stubs of every target in model as one formatted file of
// the model's package.
func Render(model *Model, w io.Writer) error {
	if model == nil || model.Package == nil {
		return fmt.Errorf("%w: empty model", ErrUnsupported)
	}

	r := &renderer{
		f:    jen.NewFilePathName(model.Package.Path(), model.Package.Name()),
		path: model.Package.Path(),
	}
	r.f.HeaderComment(Header)

	for _, t := range model.Targets {
		switch t.Kind {
		case Interface:
			r.interfaceStub(t)
		case Struct:
			r.subclassStub(t)
		default:
			return fmt.Errorf("%w: %s has kind %s", ErrUnsupported, t.Name, t.Kind)
		}
	}

	if err := r.f.Render(w); err != nil {
		return fmt.Errorf("render %s: %w", model.Package.Path(), err)
	}
	return nil
}

func (r *renderer) interfaceStub(t *Target) {
	stub := lowerName(t.Name) + "Proxy"
	ctor := "New" + t.Name + "Proxy"
	decl, use := typeParams(t)
	contract := func() *jen.Statement { return withTypes(jen.Qual(r.path, t.Name), use) }
	self := func() *jen.Statement { return withTypes(jen.Id(stub), use) }

	r.f.Commentf("%s forwards every %s call to a proxy.Surrogate.", stub, t.Name)
	r.f.Type().Add(withTypes(jen.Id(stub), decl)).Struct(r.fields(t)...)

	values := jen.Dict{jen.Id("surrogate"): jen.Id("s")}
	for _, m := range t.Methods {
		values[jen.Id(m.Field)] = jen.Id("s").Dot("Type").Call().Dot("MustMethod").Call(jen.Lit(m.Name))
	}

	r.f.Commentf("%s returns the %s stub over s.", ctor, t.Name)
	r.f.Func().Add(withTypes(jen.Id(ctor), decl)).
		Params(jen.Id("s").Op("*").Qual(ProxyPath, "Surrogate")).
		Add(contract()).
		Block(jen.Return(jen.Op("&").Add(self()).Values(values)))

	for _, m := range t.Methods {
		r.method(self(), m, nil)
	}

	options := r.paramNames(t)
	if !t.Generic() {
		r.f.Func().Id("init").Params().Block(
			callList(jen.Qual(ProxyPath, "RegisterStub").Types(contract()), append([]jen.Code{jen.Id(ctor)}, options...)),
		)
		return
	}

	register := "Register" + t.Name + "Proxy"
	r.f.Commentf("%s registers the stub of one instantiation of %s with g. A nil g means proxy.Default().", register, t.Name)
	r.f.Func().Id(register).Types(decl...).Params(jen.Id("g").Op("*").Qual(ProxyPath, "Generator")).Block(
		jen.If(jen.Id("g").Op("==").Nil()).Block(
			jen.Id("g").Op("=").Qual(ProxyPath, "Default").Call(),
		),
		callList(jen.Qual(ProxyPath, "RegisterStubWith").Types(contract()), append([]jen.Code{jen.Id("g"), withTypes(jen.Id(ctor), use)}, options...)),
	)
}

func (r *renderer) subclassStub(t *Target) {
	stub := t.Name + "Proxy"
	factory := "new" + stub
	wrap := "Wrap" + stub
	decl, use := typeParams(t)
	base := func() *jen.Statement { return jen.Op("*").Add(withTypes(jen.Qual(r.path, t.Name), use)) }
	self := func() *jen.Statement { return withTypes(jen.Id(stub), use) }

	fields := append([]jen.Code{base(), jen.Line()}, r.fields(t)...)
	r.f.Commentf("%s overrides the virtual methods of %s and routes them through a proxy.Surrogate.", stub, t.Name)
	r.f.Type().Add(withTypes(jen.Id(stub), decl)).Struct(fields...)

	body := []jen.Code{
		jen.Id("p").Op(":=").Op("&").Add(self()).Values(jen.Dict{
			jen.Id(t.Name):      jen.Id("s").Dot("Target").Call().Assert(base()),
			jen.Id("surrogate"): jen.Id("s"),
		}),
	}
	for _, m := range t.Methods {
		body = append(body, jen.List(jen.Id("p").Dot(m.Field), jen.Id("_")).Op("=").
			Id("s").Dot("Type").Call().Dot("Method").Call(jen.Lit(m.Name)))
	}
	body = append(body, jen.Return(jen.Id("p")))
	r.f.Func().Add(withTypes(jen.Id(factory), decl)).
		Params(jen.Id("s").Op("*").Qual(ProxyPath, "Surrogate")).
		Op("*").Add(self()).
		Block(body...)

	for _, m := range t.Methods {
		r.method(self(), m, func() []jen.Code {
			direct := jen.Id("p").Dot(t.Name).Dot(m.Name).Call(forwardArgs(m.Params, m.Variadic)...)
			if len(m.Results) == 0 {
				return []jen.Code{direct, jen.Return()}
			}
			return []jen.Code{jen.Return(direct)}
		})
	}

	r.f.Commentf("%s wraps base so that rt intercepts its virtual methods.", wrap)
	r.f.Func().Add(withTypes(jen.Id(wrap), decl)).
		Params(jen.Id("rt").Op("*").Qual(DispatchPath, "Runtime"), jen.Id("base").Add(base())).
		Params(jen.Op("*").Add(self()), jen.Error()).
		Block(
			jen.List(jen.Id("s"), jen.Err()).Op(":=").Qual(ProxyPath, "Default").Call().Dot("WrapSubclass").Call(jen.Id("rt"), jen.Id("base")),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
			jen.Return(jen.Qual(ProxyPath, "Stub").Types(jen.Op("*").Add(self())).Call(jen.Id("s"))),
		)

	for _, c := range t.Constructors {
		r.constructor(t, c, stub, wrap)
	}

	options := r.paramNames(t)
	if !t.Generic() {
		r.f.Func().Id("init").Params().Block(
			callList(jen.Qual(ProxyPath, "RegisterSubclassStub").Types(jen.Qual(r.path, t.Name), jen.Op("*").Id(stub)),
				append([]jen.Code{jen.Id(factory)}, options...)),
		)
		return
	}

	register := "Register" + stub
	r.f.Commentf("%s registers the stub of one instantiation of %s with g. A nil g means proxy.Default(), the generator %s uses.", register, t.Name, wrap)
	r.f.Func().Id(register).Types(decl...).Params(jen.Id("g").Op("*").Qual(ProxyPath, "Generator")).Block(
		jen.If(jen.Id("g").Op("==").Nil()).Block(
			jen.Id("g").Op("=").Qual(ProxyPath, "Default").Call(),
		),
		callList(jen.Qual(ProxyPath, "RegisterSubclassStubWith").Types(withTypes(jen.Qual(r.path, t.Name), use), jen.Op("*").Add(self())),
			append([]jen.Code{jen.Id("g"), withTypes(jen.Id(factory), use)}, options...)),
	)
}

func (r *renderer) constructor(t *Target, c *Constructor, stub, wrap string) {
	decl, use := typeParams(t)
	params := []jen.Code{jen.Id("rt").Op("*").Qual(DispatchPath, "Runtime")}
	for i, p := range c.Params {
		params = append(params, paramCode(p.Ident, p.Type, c.Variadic && i == len(c.Params)-1))
	}

	create := withTypes(jen.Qual(r.path, c.Name), use).Call(forwardArgs(c.Params, c.Variadic)...)
	var body []jen.Code
	if c.HasError {
		body = append(body,
			jen.List(jen.Id("base"), jen.Err()).Op(":=").Add(create),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
		)
	} else {
		body = append(body, jen.Id("base").Op(":=").Add(create))
	}

	ref := jen.Id("base")
	if !c.Pointer {
		ref = jen.Op("&").Id("base")
	}
	body = append(body, jen.Return(withTypes(jen.Id(wrap), use).Call(jen.Id("rt"), ref)))

	r.f.Commentf("%s creates a %s with %s and wraps it.", c.ProxyName(), t.Name, c.Name)
	r.f.Func().Add(withTypes(jen.Id(c.ProxyName()), decl)).
		Params(params...).
		Params(jen.Op("*").Add(withTypes(jen.Id(stub), use)), jen.Error()).
		Block(body...)
}

// method renders one forwarding method on receiver type recv. fallback, when
// set, is run instead of the surrogate for methods the proxy type does not
// intercept.
func (r *renderer) method(recv *jen.Statement, m *Method, fallback func() []jen.Code) {
	params := make([]jen.Code, 0, len(m.Params))
	for i, p := range m.Params {
		params = append(params, paramCode(p.Ident, p.Type, m.Variadic && i == len(m.Params)-1))
	}

	args := []jen.Code{jen.Id("p").Dot(m.Field)}
	for _, p := range m.Params {
		args = append(args, jen.Id(p.Ident))
	}
	invoke := func(name string) *jen.Statement {
		return jen.Id("p").Dot("surrogate").Dot(name).Call(args...)
	}

	var body []jen.Code
	if fallback != nil {
		body = append(body, jen.If(jen.Id("p").Dot(m.Field).Op("==").Nil()).Block(fallback()...))
	}

	values := m.Values()
	results := make([]jen.Code, 0, len(m.Results))
	for i, t := range values {
		results = append(results, jen.Qual(ProxyPath, "Result").Types(typeCode(t)).Call(jen.Id("values"), jen.Lit(i)))
	}

	switch {
	case m.HasError() && len(values) == 0:
		body = append(body,
			jen.List(jen.Id("_"), jen.Err()).Op(":=").Add(invoke("Invoke")),
			jen.Return(jen.Err()),
		)
	case m.HasError():
		body = append(body,
			jen.List(jen.Id("values"), jen.Err()).Op(":=").Add(invoke("Invoke")),
			jen.Return(append(results, jen.Err())...),
		)
	case len(values) == 0:
		body = append(body, invoke("MustInvoke"))
	default:
		body = append(body,
			jen.Id("values").Op(":=").Add(invoke("MustInvoke")),
			jen.Return(results...),
		)
	}

	r.f.Func().Params(jen.Id("p").Op("*").Add(recv)).Id(m.Name).Params(params...).Add(resultList(m.Results)).Block(body...)
}

func (r *renderer) fields(t *Target) []jen.Code {
	fields := []jen.Code{jen.Id("surrogate").Op("*").Qual(ProxyPath, "Surrogate")}
	for _, m := range t.Methods {
		fields = append(fields, jen.Id(m.Field).Op("*").Qual(CallPath, "Method"))
	}
	return fields
}

// paramNames renders the WithParamNames options of the methods of t that
// take parameters.
func (r *renderer) paramNames(t *Target) []jen.Code {
	var options []jen.Code
	for _, m := range t.Methods {
		if len(m.Params) == 0 {
			continue
		}
		names := []jen.Code{jen.Lit(m.Name)}
		for _, p := range m.Params {
			names = append(names, jen.Lit(p.Name))
		}
		options = append(options, jen.Qual(ProxyPath, "WithParamNames").Call(names...))
	}
	return options
}

// callList renders a call of s, one argument per line when there are several
func callList(s *jen.Statement, args []jen.Code) *jen.Statement {
	if len(args) < 2 {
		return s.Call(args...)
	}
	return s.Custom(jen.Options{Open: "(", Close: ")", Separator: ",", Multi: true}, args...)
}

func typeParams(t *Target) (decl, use []jen.Code) {
	for _, tp := range t.TypeParams {
		decl = append(decl, jen.Id(tp.Name).Add(typeCode(tp.Constraint)))
		use = append(use, jen.Id(tp.Name))
	}
	return decl, use
}

func withTypes(s *jen.Statement, types []jen.Code) *jen.Statement {
	if len(types) == 0 {
		return s
	}
	return s.Types(types...)
}

func forwardArgs(params []Param, variadic bool) []jen.Code {
	args := make([]jen.Code, 0, len(params))
	for i, p := range params {
		arg := jen.Id(p.Ident)
		if variadic && i == len(params)-1 {
			arg = arg.Op("...")
		}
		args = append(args, arg)
	}
	return args
}
