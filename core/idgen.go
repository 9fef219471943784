/*
idgen.go - Human-readable code generation

PURPOSE:
  Products and customers carry short codes ("P042", "C117") on top of
  their row ids. Codes are drawn uniformly at random from the fixed
  1000-value space and checked against the live collection, retrying up
  to the budget. The small keyspace is a deliberate readability trade-off:
  below ~500 rows exhaustion is effectively unreachable, and a collision
  between concurrent callers cannot happen with a single writer.
*/
package core

import (
	"context"
	"fmt"
	"math/rand"
)

const (
	codeSpace        = 1000
	codeAttemptLimit = 100
)

// CodeGenerator produces collision-checked codes against a live store.
// Intn is injectable for deterministic tests; nil uses math/rand.
type CodeGenerator struct {
	Store Store
	Intn  func(n int) int
}

func NewCodeGenerator(store Store) *CodeGenerator {
	return &CodeGenerator{Store: store, Intn: rand.Intn}
}

// NextProductCode returns an unused "P" + 3-digit code.
func (g *CodeGenerator) NextProductCode(ctx context.Context) (string, error) {
	return g.next(ctx, "P", func(ctx context.Context, code string) (bool, error) {
		p, err := g.Store.GetProductByCode(ctx, code)
		return p != nil, err
	})
}

// NextCustomerCode returns an unused "C" + 3-digit code.
func (g *CodeGenerator) NextCustomerCode(ctx context.Context) (string, error) {
	return g.next(ctx, "C", func(ctx context.Context, code string) (bool, error) {
		c, err := g.Store.GetCustomerByCode(ctx, code)
		return c != nil, err
	})
}

func (g *CodeGenerator) next(ctx context.Context, prefix string, taken func(context.Context, string) (bool, error)) (string, error) {
	intn := g.Intn
	if intn == nil {
		intn = rand.Intn
	}
	for attempt := 0; attempt < codeAttemptLimit; attempt++ {
		code := fmt.Sprintf("%s%03d", prefix, intn(codeSpace))
		exists, err := taken(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", &GenerationExhaustedError{Prefix: prefix, Attempts: codeAttemptLimit}
}
