package codegen

import (
	"errors"
	"go/types"
)

// Import paths referenced by generated stubs
const (
	ModulePath   = "github.com/lubkli/IoCBuilder-sub000"
	ProxyPath    = ModulePath + "/proxy"
	CallPath     = ModulePath + "/call"
	DispatchPath = ModulePath + "/dispatch"
)

var (
	ErrNotFound    = errors.New("codegen: type not found")
	ErrUnsupported = errors.New("codegen: unsupported type")
	ErrSealed      = errors.New("codegen: struct is sealed")
)

// Kind selects the stub shape rendered for a target
type Kind int

const (
	// Interface targets get a capability-wrap stub
	Interface Kind = iota
	// Struct targets get a subclass-wrap stub
	Struct
)

func (k Kind) String() string {
	switch k {
	case Interface:
		return "interface"
	case Struct:
		return "struct"
	default:
		return "unknown"
	}
}

// Param is a formal parameter. Name is the declared name, or argN when the
// declaration leaves it out; Ident is the identifier used in generated code.
type Param struct {
	Name  string
	Ident string
	Type  types.Type
}

// Method is a method to forward
type Method struct {
	Name     string
	Field    string
	Params   []Param
	Results  []types.Type
	Variadic bool
}

// HasError reports whether the last result is error
func (m *Method) HasError() bool {
	return len(m.Results) > 0 && isError(m.Results[len(m.Results)-1])
}

// Values returns the results carried in the values slice of an invocation
func (m *Method) Values() []types.Type {
	if m.HasError() {
		return m.Results[:len(m.Results)-1]
	}
	return m.Results
}

// Constructor is a New<Name> function of a struct target
type Constructor struct {
	Name     string
	Params   []Param
	Variadic bool
	Pointer  bool
	HasError bool
}

// ProxyName is the name of the generated constructor mirroring c
func (c *Constructor) ProxyName() string { return c.Name + "Proxy" }

// TypeParam is a type parameter of a generic interface target
type TypeParam struct {
	Name       string
	Constraint types.Type
}

// Target is one type to generate a stub for
type Target struct {
	Name         string
	Kind         Kind
	TypeParams   []TypeParam
	Methods      []*Method
	Finals       []string
	Constructors []*Constructor
}

// Generic reports whether the target declares type parameters
func (t *Target) Generic() bool { return len(t.TypeParams) > 0 }

// Model is the input of Render: the targets of one package
type Model struct {
	Package *types.Package
	Targets []*Target
}

func isError(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}
