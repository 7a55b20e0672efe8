package call

import (
	"fmt"
)

// ParameterCollection is a filtered, positional view over an argument array.
// Index i of the view addresses the i-th parameter kept by the filter; reads
// and writes go straight to the shared array.
type ParameterCollection struct {
	args    []any
	params  []Param
	indexes []int
}

func newCollection(args []any, params []Param, keep func(Param) bool) *ParameterCollection {
	c := &ParameterCollection{args: args, params: params}
	for _, p := range params {
		if keep(p) {
			c.indexes = append(c.indexes, p.Position)
		}
	}
	return c
}

// Len returns the number of parameters in the view
func (c *ParameterCollection) Len() int {
	return len(c.indexes)
}

// Get returns the value of the i-th parameter of the view
func (c *ParameterCollection) Get(i int) any {
	return c.args[c.indexes[i]]
}

// Set replaces the value of the i-th parameter of the view
func (c *ParameterCollection) Set(i int, v any) {
	c.args[c.indexes[i]] = v
}

// Param returns the descriptor of the i-th parameter of the view
func (c *ParameterCollection) Param(i int) Param {
	return c.params[c.indexes[i]]
}

// ByName returns the value of the named parameter
func (c *ParameterCollection) ByName(name string) (any, bool) {
	i := c.indexOf(name)
	if i < 0 {
		return nil, false
	}
	return c.Get(i), true
}

// SetByName replaces the value of the named parameter
func (c *ParameterCollection) SetByName(name string, v any) error {
	i := c.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNoSuchParameter, name)
	}
	c.Set(i, v)
	return nil
}

// Contains reports whether the view has a parameter of that name
func (c *ParameterCollection) Contains(name string) bool {
	return c.indexOf(name) >= 0
}

// Names returns the parameter names of the view in order
func (c *ParameterCollection) Names() []string {
	names := make([]string, len(c.indexes))
	for i, idx := range c.indexes {
		names[i] = c.params[idx].Name
	}
	return names
}

// Values returns a copy of the parameter values of the view in order
func (c *ParameterCollection) Values() []any {
	values := make([]any, len(c.indexes))
	for i, idx := range c.indexes {
		values[i] = c.args[idx]
	}
	return values
}

func (c *ParameterCollection) indexOf(name string) int {
	for i, idx := range c.indexes {
		if c.params[idx].Name == name {
			return i
		}
	}
	return -1
}
