package codegen

import (
	"go/types"

	"github.com/dave/jennifer/jen"
)

// typeCode renders t. Named types are qualified by import path and jen
// drops the qualifier for the package being generated.
func typeCode(t types.Type) *jen.Statement {
	switch t := types.Unalias(t).(type) {
	case *types.Basic:
		return jen.Id(t.Name())
	case *types.Named:
		obj := t.Obj()
		var s *jen.Statement
		if obj.Pkg() == nil {
			s = jen.Id(obj.Name())
		} else {
			s = jen.Qual(obj.Pkg().Path(), obj.Name())
		}
		if args := t.TypeArgs(); args.Len() > 0 {
			codes := make([]jen.Code, 0, args.Len())
			for i := 0; i < args.Len(); i++ {
				codes = append(codes, typeCode(args.At(i)))
			}
			s = s.Types(codes...)
		}
		return s
	case *types.TypeParam:
		return jen.Id(t.Obj().Name())
	case *types.Pointer:
		return jen.Op("*").Add(typeCode(t.Elem()))
	case *types.Slice:
		return jen.Index().Add(typeCode(t.Elem()))
	case *types.Array:
		return jen.Index(jen.Lit(int(t.Len()))).Add(typeCode(t.Elem()))
	case *types.Map:
		return jen.Map(typeCode(t.Key())).Add(typeCode(t.Elem()))
	case *types.Chan:
		switch t.Dir() {
		case types.SendOnly:
			return jen.Chan().Op("<-").Add(typeCode(t.Elem()))
		case types.RecvOnly:
			return jen.Op("<-").Chan().Add(typeCode(t.Elem()))
		default:
			return jen.Chan().Add(typeCode(t.Elem()))
		}
	case *types.Signature:
		return jen.Func().Params(paramCodes(t.Params(), t.Variadic())...).Add(resultCode(t.Results()))
	case *types.Interface:
		return interfaceCode(t)
	case *types.Struct:
		fields := make([]jen.Code, 0, t.NumFields())
		for i := 0; i < t.NumFields(); i++ {
			f := t.Field(i)
			if f.Embedded() {
				fields = append(fields, typeCode(f.Type()))
				continue
			}
			fields = append(fields, jen.Id(f.Name()).Add(typeCode(f.Type())))
		}
		return jen.Struct(fields...)
	default:
		return jen.Id(types.TypeString(t, nil))
	}
}

func interfaceCode(t *types.Interface) *jen.Statement {
	if t.Empty() {
		return jen.Id("any")
	}
	if !t.IsMethodSet() {
		// unions and approximation terms
		return jen.Id(types.TypeString(t, (*types.Package).Name))
	}

	members := make([]jen.Code, 0, t.NumEmbeddeds()+t.NumExplicitMethods())
	for i := 0; i < t.NumEmbeddeds(); i++ {
		members = append(members, typeCode(t.EmbeddedType(i)))
	}
	for i := 0; i < t.NumExplicitMethods(); i++ {
		fn := t.ExplicitMethod(i)
		sig := fn.Type().(*types.Signature)
		members = append(members, jen.Id(fn.Name()).Params(paramCodes(sig.Params(), sig.Variadic())...).Add(resultCode(sig.Results())))
	}
	return jen.Interface(members...)
}

func paramCodes(tuple *types.Tuple, variadic bool) []jen.Code {
	codes := make([]jen.Code, 0, tuple.Len())
	for i := 0; i < tuple.Len(); i++ {
		codes = append(codes, paramCode(tuple.At(i).Name(), tuple.At(i).Type(), variadic && i == tuple.Len()-1))
	}
	return codes
}

func paramCode(name string, t types.Type, variadic bool) *jen.Statement {
	s := jen.Null()
	if name != "" {
		s = jen.Id(name)
	}
	if variadic {
		return s.Op("...").Add(typeCode(t.(*types.Slice).Elem()))
	}
	return s.Add(typeCode(t))
}

func resultCode(tuple *types.Tuple) *jen.Statement {
	list := make([]types.Type, 0, tuple.Len())
	for i := 0; i < tuple.Len(); i++ {
		list = append(list, tuple.At(i).Type())
	}
	return resultList(list)
}

// resultList renders a result list: nothing, a bare type, or a
// parenthesized list.
func resultList(results []types.Type) *jen.Statement {
	switch len(results) {
	case 0:
		return jen.Null()
	case 1:
		return typeCode(results[0])
	default:
		codes := make([]jen.Code, 0, len(results))
		for _, t := range results {
			codes = append(codes, typeCode(t))
		}
		return jen.Parens(jen.List(codes...))
	}
}
