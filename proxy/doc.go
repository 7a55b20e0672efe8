// Package proxy produces stand-ins that route method calls through a
// dispatch.Runtime.
//
// Three mechanisms are supported:
//   - InterfaceWrap wraps a target behind an exported interface it implements.
//   - SubclassWrap wraps an exported, unsealed struct and overrides every
//     exported method of its pointer method set that is not final.
//   - TransparentWrap wraps an existing Remotable, an object that can be
//     called by method name with positional arguments.
//
// Go cannot add methods to a type at run time, so the "generated type" is a
// Type: a memoized descriptor holding the method table of the original type,
// one cached *call.Method per method. A Surrogate is the per-instance dispatch
// surface built from it. Statically typed stand-ins are forwarding stubs
// written ahead of time by cmd/proxygen; a stub holds a Surrogate, caches its
// method descriptors once, and does nothing but pass its arguments to
// Surrogate.Invoke:
//
//	func (p *CalculatorProxy) Compute(x float64, total *call.Ref[int]) (int, error) {
//		values, err := p.surrogate.Invoke(p.compute, x, total)
//		return proxy.Result[int](values, 0), err
//	}
//
// Stubs register themselves with RegisterStub so that Interface can turn a
// Surrogate back into the contract type.
package proxy
