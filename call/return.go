package call

// Return is the outcome of an invocation: either result values plus the
// output view, or a captured failure.
type Return struct {
	inv    *Invocation
	values []any
	err    error
}

// Invocation returns the invocation this outcome belongs to
func (r *Return) Invocation() *Invocation {
	return r.inv
}

// ReturnValue returns the first non-error result, or nil
func (r *Return) ReturnValue() any {
	if len(r.values) == 0 {
		return nil
	}
	return r.values[0]
}

// SetReturnValue replaces the first non-error result
func (r *Return) SetReturnValue(v any) {
	r.SetValue(0, v)
}

// Value returns the i-th non-error result
func (r *Return) Value(i int) any {
	if i < 0 || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

// SetValue replaces the i-th non-error result
func (r *Return) SetValue(i int, v any) {
	for len(r.values) <= i {
		r.values = append(r.values, nil)
	}
	r.values[i] = v
}

// Values returns a copy of the non-error results
func (r *Return) Values() []any {
	return append([]any(nil), r.values...)
}

// Outputs returns a view over the Out and InOut parameters
func (r *Return) Outputs() *ParameterCollection {
	return newCollection(r.inv.args, r.inv.Method.Params, func(p Param) bool { return p.Direction.IsOutput() })
}

// Err returns the captured failure
func (r *Return) Err() error {
	return r.err
}

// SetErr replaces or clears the captured failure
func (r *Return) SetErr(err error) {
	r.err = err
}

// Failed reports whether the outcome carries a failure
func (r *Return) Failed() bool {
	return r.err != nil
}
