package runtime

// Frame holds the name-bound variables visible during one function or
// closure-body execution, plus a lexical ancestor chain for closures. MIR
// registers only express evaluation order (see internal/mir); Frame is
// where bound variable names actually live, consulted by ILoadVariable and
// populated by the pattern-matching engine when a call or Match arm binds
// its parameters — mirroring RuntimeValue's own Closure{params,body,env}
// shape (spec.md §3).
//
// module tracks the lexical home module for unqualified (CalleeLocal)
// calls. Lambda-lifted bodies (closures, for-bodies, try handlers) have no
// Module of their own in MIR, so they inherit it from the frame active
// where they were created, the same way they inherit everything else
// lexically.
type Frame struct {
	vars   map[string]Value
	anc    *Frame
	module string
}

// NewFrame creates a fresh frame. anc is nil for a plain top-level call;
// non-nil for a closure/for-body/try-handler invocation, chaining back to
// the environment captured at creation time.
func NewFrame(anc *Frame, module string) *Frame {
	return &Frame{vars: map[string]Value{}, anc: anc, module: module}
}

// Get looks up name in this frame, then walks the ancestor chain.
func (f *Frame) Get(name string) (Value, bool) {
	for cur := f; cur != nil; cur = cur.anc {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// Set binds name in this frame (never an ancestor).
func (f *Frame) Set(name string, v Value) {
	f.vars[name] = v
}

// Module returns the lexical home module used to resolve unqualified calls.
func (f *Frame) Module() string {
	return f.module
}
