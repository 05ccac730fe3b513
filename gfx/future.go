package gfx

// Token is a backend-issued completion token for one unit of
// submitted GPU work.
type Token interface {

	// Signaled reports whether the work has completed.
	Signaled() bool

	// Free releases resources held by the token. Only called once
	// the token is signaled or the work it guards was discarded.
	Free()
}

// NewFutureChain creates a chain over the given tokens.
func NewFutureChain(tokens ...Token) *FutureChain {
	return &FutureChain{tokens: tokens}
}

// FutureChain is a composable handle over pending GPU work. A chain is
// complete only when every token in it has signaled, which makes Join
// commutative and associative in completion semantics. Chains are
// consumed by Join and by queue submission, they are not safe for
// concurrent use.
type FutureChain struct {
	tokens []Token
}

// Join merges other into the chain and returns the combined chain.
// Either receiver or argument may be nil. The operands must not be
// used after the call.
func (c *FutureChain) Join(other *FutureChain) *FutureChain {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	c.tokens = append(c.tokens, other.tokens...)
	return c
}

// Signaled reports whether every token in the chain has completed.
// A nil or empty chain counts as complete.
func (c *FutureChain) Signaled() bool {
	if c == nil {
		return true
	}
	for _, t := range c.tokens {
		if !t.Signaled() {
			return false
		}
	}
	return true
}

// Cleanup frees tokens whose work has already completed, bounding the
// growth of a chain that is carried across frames.
func (c *FutureChain) Cleanup() {
	if c == nil {
		return
	}
	kept := c.tokens[:0]
	for _, t := range c.tokens {
		if t.Signaled() {
			t.Free()
			continue
		}
		kept = append(kept, t)
	}
	c.tokens = kept
}

// Free releases every token in the chain. Used when a frame is
// dropped and its work will never be observed.
func (c *FutureChain) Free() {
	if c == nil {
		return
	}
	for _, t := range c.tokens {
		t.Free()
	}
	c.tokens = nil
}

// Tokens returns the pending tokens for backends to wait on.
// The slice aliases the chain and must not be mutated.
func (c *FutureChain) Tokens() []Token {
	if c == nil {
		return nil
	}
	return c.tokens
}
