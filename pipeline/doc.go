// Package pipeline composes ordered handler lists into onion-style call chains.
//
// A handler runs its "before" logic, asks its continuation for the next
// invoke function and calls it, then runs its "after" logic on the Return it
// got back. Handlers that never call their continuation short-circuit the
// rest of the chain and the real method.
//
// Example usage:
//
//	p := pipeline.New(
//		pipeline.NewHandlerFunc("audit", func(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
//			log.Println("before", inv.Method)
//			ret := getNext()(inv, getNext)
//			log.Println("after", inv.Method)
//			return ret
//		}),
//	)
//
//	ret := p.Invoke(inv, realCall)
package pipeline
