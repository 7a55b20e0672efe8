// Package call holds the data model of one intercepted method call.
//
// A Method describes the formal shape of an intercepted method: its owner type,
// its parameters with their direction, and its results. An Invocation carries the
// target and the positional argument array for one in-flight call, and a Return
// carries its outcome. Both expose views (Arguments, Inputs, Outputs) over the
// same backing array, so a handler that rewrites an input changes what the real
// method sees, and a handler that rewrites an output changes what the caller sees.
//
// By-reference parameters are modelled as directional slots:
//   - *Ref[T] is an in-out parameter: its value is read before the call and
//     written back afterwards.
//   - *Out[T] is an output-only parameter: it starts from the zero value of T
//     and is written back afterwards.
//
// Every other parameter, pointers included, is an input passed by value.
package call
