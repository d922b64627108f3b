package testutil

import (
	"fmt"

	"github.com/roach88/tokenx/internal/ir"
)

// Addr returns the address whose numeric value is n, zero-padded to 20
// bytes. Addr(0) is the zero address.
func Addr(n uint64) ir.Address {
	return ir.Address(fmt.Sprintf("0x%040x", n))
}

// Named fixture addresses. Their hex spells the name where possible so
// golden files stay readable.
var (
	Alice = Addr(0xa11ce)
	Bob   = Addr(0xb0b)
	Carol = Addr(0xca201)
	Dave  = Addr(0xda7e)
)

// Named maps the fixture names used in scenario files to addresses.
var Named = map[string]ir.Address{
	"alice": Alice,
	"bob":   Bob,
	"carol": Carol,
	"dave":  Dave,
	"zero":  ir.ZeroAddress,
}
