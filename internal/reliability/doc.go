// Package reliability provides the circuit breaker and retry policies behind
// the breaker and retry handlers.
//
// Both are driven one call at a time: the breaker is asked whether a call may
// proceed and is then told how it ended; a retry policy is asked, after each
// failed attempt, whether and when to try again. Neither runs the call itself,
// so they fit inside a handler that owns the continuation.
//
//	cb := NewCircuitBreaker(
//	    WithFailureThreshold(5),
//	    WithTimeout(30 * time.Second),
//	)
//
//	if err := cb.Allow(); err != nil {
//	    return inv.CreateFailure(err)
//	}
//	ret := getNext()(inv, getNext)
//	cb.Record(ret.Err())
package reliability
