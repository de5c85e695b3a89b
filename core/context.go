package core

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"github.com/wasmerio/wasmer-go/wasmer"
)

// DefaultTickBudget is the reference tick ceiling seeded into every
// invocation. Treated as a configuration knob, not a hardcoded constant
// baked into call sites — see spec Design Notes.
const DefaultTickBudget = 10_000_000

// ExecutionContext is the per-invocation mutable state the host holds
// while a single guest run is in flight. It is destroyed when the
// invocation returns. See spec §4.2.
type ExecutionContext struct {
	ticksLeft uint64
	memory    *wasmer.Memory
	preState  Bytes32
	blockData []byte
	postState Bytes32
	deposits  [][]byte
	log       *logrus.Entry
}

// NewExecutionContext seeds a fresh context for one guest invocation.
func NewExecutionContext(preState Bytes32, blockData []byte, tickBudget uint64) *ExecutionContext {
	return &ExecutionContext{
		ticksLeft: tickBudget,
		preState:  preState,
		blockData: blockData,
		log:       logrus.WithField("component", "execution_context"),
	}
}

// bindMemory attaches the guest's exported linear memory. Called once the
// sandbox harness has located the "memory" export.
func (ctx *ExecutionContext) bindMemory(mem *wasmer.Memory) { ctx.memory = mem }

// PostState returns whatever the guest last wrote with savePostStateRoot,
// or the zero root if it never called it — that is silent, not an error.
func (ctx *ExecutionContext) PostState() Bytes32 { return ctx.postState }

// Deposits returns the deposit blobs pushed during this invocation, in
// call order.
func (ctx *ExecutionContext) Deposits() [][]byte { return ctx.deposits }

// bounds validates that [ptr, ptr+length) lies within guest linear
// memory, returning the backing slice on success. Every host call that
// touches guest memory routes through this so out-of-range access is
// always a trap, never a panic.
func (ctx *ExecutionContext) bounds(ptr, length uint32) ([]byte, error) {
	data := ctx.memory.Data()
	end := uint64(ptr) + uint64(length)
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("memory access [%d, %d) out of bounds (len %d)", ptr, end, len(data))
	}
	return data[ptr:end], nil
}

// UseTicks subtracts n from the remaining tick budget. Exhaustion traps.
func (ctx *ExecutionContext) UseTicks(n uint32) error {
	if uint64(n) > ctx.ticksLeft {
		return fmt.Errorf("tick budget exhausted: used %d, only %d remaining", n, ctx.ticksLeft)
	}
	ctx.ticksLeft -= uint64(n)
	return nil
}

// LoadPreStateRoot writes the environment's pre-block state root into
// guest memory at ptr.
func (ctx *ExecutionContext) LoadPreStateRoot(ptr uint32) error {
	dst, err := ctx.bounds(ptr, 32)
	if err != nil {
		return err
	}
	copy(dst, ctx.preState[:])
	return nil
}

// SavePostStateRoot reads 32 bytes from guest memory at ptr into the
// invocation's post-state cell.
func (ctx *ExecutionContext) SavePostStateRoot(ptr uint32) error {
	src, err := ctx.bounds(ptr, 32)
	if err != nil {
		return err
	}
	copy(ctx.postState[:], src)
	return nil
}

// BlockDataSize returns the length in bytes of the block body.
func (ctx *ExecutionContext) BlockDataSize() uint32 { return uint32(len(ctx.blockData)) }

// BlockDataCopy copies [off, off+length) of the block body into guest
// memory at ptr. This implements the spec's intended semantics, not the
// original's buggy &data[offset..length] slicing — see spec Design Notes.
func (ctx *ExecutionContext) BlockDataCopy(ptr, off, length uint32) error {
	end := uint64(off) + uint64(length)
	if end > uint64(len(ctx.blockData)) {
		return fmt.Errorf("block data slice [%d, %d) out of bounds (len %d)", off, end, len(ctx.blockData))
	}
	dst, err := ctx.bounds(ptr, length)
	if err != nil {
		return err
	}
	copy(dst, ctx.blockData[off:end])
	return nil
}

// PushNewDeposit appends a freshly-copied length-byte slice of guest
// memory to the invocation's deposit list.
func (ctx *ExecutionContext) PushNewDeposit(ptr, length uint32) error {
	src, err := ctx.bounds(ptr, length)
	if err != nil {
		return err
	}
	blob := make([]byte, length)
	copy(blob, src)
	ctx.deposits = append(ctx.deposits, blob)
	return nil
}

// BignumAdd256 reads two 32-byte big-endian unsigned integers at aPtr and
// bPtr and writes their 256-bit sum at cPtr. Overflow traps.
func (ctx *ExecutionContext) BignumAdd256(aPtr, bPtr, cPtr uint32) error {
	a, b, err := ctx.readOperands(aPtr, bPtr)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return fmt.Errorf("bignum_add256 overflow")
	}
	return ctx.writeResult(cPtr, sum)
}

// BignumSub256 reads two 32-byte big-endian unsigned integers at aPtr and
// bPtr and writes their difference at cPtr. Underflow traps.
func (ctx *ExecutionContext) BignumSub256(aPtr, bPtr, cPtr uint32) error {
	a, b, err := ctx.readOperands(aPtr, bPtr)
	if err != nil {
		return err
	}
	diff, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return fmt.Errorf("bignum_sub256 underflow")
	}
	return ctx.writeResult(cPtr, diff)
}

func (ctx *ExecutionContext) readOperands(aPtr, bPtr uint32) (*uint256.Int, *uint256.Int, error) {
	araw, err := ctx.bounds(aPtr, 32)
	if err != nil {
		return nil, nil, err
	}
	braw, err := ctx.bounds(bPtr, 32)
	if err != nil {
		return nil, nil, err
	}
	a := new(uint256.Int).SetBytes(araw)
	b := new(uint256.Int).SetBytes(braw)
	return a, b, nil
}

func (ctx *ExecutionContext) writeResult(ptr uint32, v *uint256.Int) error {
	dst, err := ctx.bounds(ptr, 32)
	if err != nil {
		return err
	}
	raw := v.Bytes32()
	copy(dst, raw[:])
	return nil
}

// Print32 emits a decimal debug log line for a guest-supplied i32.
func (ctx *ExecutionContext) Print32(v int32) { ctx.log.Debugf("print.i32: %d", v) }

// Print64 emits a decimal debug log line for a guest-supplied i64.
func (ctx *ExecutionContext) Print64(v int64) { ctx.log.Debugf("print.i64: %d", v) }

// PrintMem emits length bytes from guest memory as UTF-8 (lossy).
func (ctx *ExecutionContext) PrintMem(ptr, length uint32) error {
	buf, err := ctx.bounds(ptr, length)
	if err != nil {
		return err
	}
	ctx.log.Debugf("print: %s", string(buf))
	return nil
}

// PrintMemHex emits length bytes from guest memory as lowercase hex.
func (ctx *ExecutionContext) PrintMemHex(ptr, length uint32) error {
	buf, err := ctx.bounds(ptr, length)
	if err != nil {
		return err
	}
	ctx.log.Debugf("print.hex: %s", hex.EncodeToString(buf))
	return nil
}
