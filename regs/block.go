package regs

import (
	"regmap-go/errcode"
	"regmap-go/mmio"
)

// Guard provides mutual exclusion for read-modify-write sequences against
// other execution contexts (interrupt handlers, other cores, goroutines).
// Enter blocks until the caller owns the block and returns the release func.
type Guard interface {
	Enter() (release func())
}

// Option configures a Block.
type Option func(*Block)

// WithGuard makes every read-modify-write on the block run inside g.
func WithGuard(g Guard) Option { return func(b *Block) { b.guard = g } }

// Block is a typed view of one peripheral instance: a Layout bound to a
// memory backing at a base address. It holds no register state of its own.
//
// A Block assumes a single logical owner. ModifyField and WriteBits are
// read-modify-write sequences; without a Guard they race with any other
// context writing the same register.
type Block struct {
	name   string
	mem    mmio.Memory
	base   uintptr
	layout *Layout
	guard  Guard
}

// NewBlock binds l at base. The base must be aligned to the widest field and,
// when mem can tell, the whole extent must be mapped.
func NewBlock(name string, mem mmio.Memory, base uintptr, l *Layout, opts ...Option) (*Block, error) {
	const op = "block"
	if mem == nil || l == nil {
		return nil, errcode.New(errcode.InvalidParams, op, name+": nil memory or layout")
	}
	if base%l.Align() != 0 {
		return nil, errcode.New(errcode.Misaligned, op, name+" base "+mmio.Hex(uint64(base)))
	}
	if m, ok := mem.(mmio.Mapper); ok {
		if !m.Mapped(base, l.Size()) {
			return nil, errcode.New(errcode.Unmapped, op, name+" base "+mmio.Hex(uint64(base)))
		}
	} else if base == 0 {
		return nil, errcode.New(errcode.Unmapped, op, name+" base 0")
	}
	b := &Block{name: name, mem: mem, base: base, layout: l}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// MustBlock is NewBlock for bases fixed by the platform memory map.
func MustBlock(name string, mem mmio.Memory, base uintptr, l *Layout, opts ...Option) *Block {
	b, err := NewBlock(name, mem, base, l, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Block) Name() string        { return b.name }
func (b *Block) Base() uintptr       { return b.base }
func (b *Block) Layout() *Layout     { return b.layout }
func (b *Block) Memory() mmio.Memory { return b.mem }

// Field looks a field up by name.
func (b *Block) Field(name string) (Field, bool) { return b.layout.Field(name) }

// Addr is the absolute address of f.
func (b *Block) Addr(f Field) uintptr { return b.base + f.Offset }

func (b *Block) check(op string, f Field) error {
	if !b.layout.Has(f) {
		return errcode.New(errcode.UnknownField, op, b.name+"."+f.Name)
	}
	return nil
}

// ReadField performs one fresh load of f. Reading a field whose Effect is set
// has that hardware side effect. f must belong to the block's layout; a
// foreign field panics.
func (b *Block) ReadField(f Field) uint32 {
	if err := b.check("read", f); err != nil {
		panic(err)
	}
	return mmio.Load(b.mem, b.base+f.Offset, f.Width)
}

// WriteField performs one fresh store of v to f.
//
// Values wider than the field are rejected with errcode.OutOfRange and
// nothing is written; there is no silent truncation. Writing a read-only
// field is rejected with errcode.ReadOnly.
func (b *Block) WriteField(f Field, v uint32) error {
	const op = "write"
	if err := b.check(op, f); err != nil {
		return err
	}
	if !f.Access.Writable() {
		return errcode.New(errcode.ReadOnly, op, b.name+"."+f.Name)
	}
	if !f.Fits(v) {
		return errcode.New(errcode.OutOfRange, op, b.name+"."+f.Name+" "+mmio.Hex(uint64(v))+" exceeds "+f.Width.String())
	}
	mmio.Store(b.mem, b.base+f.Offset, f.Width, v)
	return nil
}

// ModifyField reads f, applies fn and writes the result back: exactly one
// load followed by one store.
//
// This is a read-modify-write sequence and is not atomic with respect to
// other contexts unless the block has a Guard. Only RW fields can be
// modified; if fn returns a value wider than f nothing is written. Nothing is
// written either when the backing reports a failed transfer (mmio.Faulter)
// after the read.
func (b *Block) ModifyField(f Field, fn func(uint32) uint32) error {
	const op = "modify"
	if err := b.check(op, f); err != nil {
		return err
	}
	switch f.Access {
	case RO:
		return errcode.New(errcode.ReadOnly, op, b.name+"."+f.Name)
	case WO:
		return errcode.New(errcode.WriteOnly, op, b.name+"."+f.Name)
	}
	if b.guard != nil {
		defer b.guard.Enter()()
	}
	addr := b.base + f.Offset
	v := mmio.Load(b.mem, addr, f.Width)
	if err := faultOf(b.mem); err != nil {
		return errcode.Wrap(errcode.BusFault, op, err)
	}
	v = fn(v)
	if !f.Fits(v) {
		return errcode.New(errcode.OutOfRange, op, b.name+"."+f.Name+" "+mmio.Hex(uint64(v))+" exceeds "+f.Width.String())
	}
	mmio.Store(b.mem, addr, f.Width, v)
	return nil
}

// ReadBits returns a sub-word field.
func (b *Block) ReadBits(bits Bits) (uint32, error) {
	if err := b.checkBits("read bits", bits); err != nil {
		return 0, err
	}
	return (b.ReadField(bits.Field) >> bits.Shift) & bits.Mask(), nil
}

// WriteBits replaces a sub-word field, leaving the rest of the register as
// read. It is a ModifyField and carries the same hazard.
func (b *Block) WriteBits(bits Bits, v uint32) error {
	const op = "write bits"
	if err := b.checkBits(op, bits); err != nil {
		return err
	}
	m := bits.Mask()
	if v&^m != 0 {
		return errcode.New(errcode.OutOfRange, op, b.name+"."+bits.Field.Name+" "+mmio.Hex(uint64(v)))
	}
	return b.ModifyField(bits.Field, func(cur uint32) uint32 {
		return cur&^(m<<bits.Shift) | v<<bits.Shift
	})
}

func (b *Block) checkBits(op string, bits Bits) error {
	if err := b.check(op, bits.Field); err != nil {
		return err
	}
	if !bits.valid() {
		return errcode.New(errcode.OutOfRange, op, b.name+"."+bits.Field.Name+" bits out of field")
	}
	return nil
}

// Read is ReadField by name.
func (b *Block) Read(name string) (uint32, error) {
	f, ok := b.layout.Field(name)
	if !ok {
		return 0, errcode.New(errcode.UnknownField, "read", b.name+"."+name)
	}
	return b.ReadField(f), nil
}

// Write is WriteField by name.
func (b *Block) Write(name string, v uint32) error {
	f, ok := b.layout.Field(name)
	if !ok {
		return errcode.New(errcode.UnknownField, "write", b.name+"."+name)
	}
	return b.WriteField(f, v)
}

// Modify is ModifyField by name.
func (b *Block) Modify(name string, fn func(uint32) uint32) error {
	f, ok := b.layout.Field(name)
	if !ok {
		return errcode.New(errcode.UnknownField, "modify", b.name+"."+name)
	}
	return b.ModifyField(f, fn)
}

// Value is one field's contents at snapshot time.
type Value struct {
	Field Field
	Value uint32
}

// Snapshot reads every readable field once, in layout order. Fields whose
// reads have side effects are skipped unless withEffects is set.
func (b *Block) Snapshot(withEffects bool) []Value {
	out := make([]Value, 0, b.layout.Len())
	for _, f := range b.layout.fields {
		if !f.Access.Readable() || (f.ReadHasEffect() && !withEffects) {
			continue
		}
		out = append(out, Value{Field: f, Value: b.ReadField(f)})
	}
	return out
}

// Guarded runs fn inside the block's Guard, or directly when it has none.
// Use it for multi-register sequences that must not be interleaved.
func (b *Block) Guarded(fn func()) {
	if b.guard != nil {
		defer b.guard.Enter()()
	}
	fn()
}

// faultOf returns the pending transfer failure of a Faulter backing.
func faultOf(m mmio.Memory) error {
	if f, ok := m.(mmio.Faulter); ok {
		return f.Err()
	}
	return nil
}
