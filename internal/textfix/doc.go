// Package textfix holds the value-level checks and repairs shared by the
// validator and the cleaner. Validation asks "is this value wrong", cleaning
// asks "what is the fixed value", and both answers come from here so the two
// never disagree.
//
// Every repair is deterministic and idempotent: applying it to its own output
// returns the output unchanged.
package textfix
