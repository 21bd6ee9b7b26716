package regs

import (
	"unsafe"

	"regmap-go/errcode"
	"regmap-go/mmio"
)

// Word is the Go type of a register's contents.
type Word interface {
	~uint8 | ~uint16 | ~uint32
}

func widthOf[T Word]() mmio.Width {
	var z T
	return mmio.Width(unsafe.Sizeof(z) * 8)
}

func bind[T Word](b *Block, name string, want func(Access) bool) (Field, error) {
	f, ok := b.layout.Field(name)
	if !ok {
		return Field{}, errcode.New(errcode.UnknownField, "bind", b.name+"."+name)
	}
	if f.Width != widthOf[T]() {
		return Field{}, errcode.New(errcode.BadWidth, "bind", f.String()+" as "+widthOf[T]().String())
	}
	if !want(f.Access) {
		return Field{}, errcode.New(errcode.Unsupported, "bind", f.String())
	}
	return f, nil
}

// Reg is a bound read/write register. Width and access class are checked once
// at bind time, so its methods cannot fail.
type Reg[T Word] struct {
	b *Block
	f Field
}

// NewReg binds the RW field name of b.
func NewReg[T Word](b *Block, name string) (Reg[T], error) {
	f, err := bind[T](b, name, func(a Access) bool { return a == RW })
	return Reg[T]{b: b, f: f}, err
}

func (r Reg[T]) Field() Field { return r.f }
func (r Reg[T]) Get() T       { return T(mmio.Load(r.b.mem, r.b.base+r.f.Offset, r.f.Width)) }
func (r Reg[T]) Set(v T)      { mmio.Store(r.b.mem, r.b.base+r.f.Offset, r.f.Width, uint32(v)) }

// Modify is a read-modify-write under the block's Guard, if any. The store is
// skipped when a Faulter backing reports a failed transfer after the read.
func (r Reg[T]) Modify(fn func(T) T) {
	if r.b.guard != nil {
		defer r.b.guard.Enter()()
	}
	v := r.Get()
	if faultOf(r.b.mem) != nil {
		return
	}
	r.Set(fn(v))
}

// ROReg is a bound readable register.
type ROReg[T Word] struct {
	b *Block
	f Field
}

// NewROReg binds a readable field (RO or RW) of b.
func NewROReg[T Word](b *Block, name string) (ROReg[T], error) {
	f, err := bind[T](b, name, Access.Readable)
	return ROReg[T]{b: b, f: f}, err
}

func (r ROReg[T]) Field() Field { return r.f }
func (r ROReg[T]) Get() T       { return T(mmio.Load(r.b.mem, r.b.base+r.f.Offset, r.f.Width)) }

// WOReg is a bound writable register. There is no Get: reading a write-only
// register returns nothing meaningful.
type WOReg[T Word] struct {
	b *Block
	f Field
}

// NewWOReg binds a writable field (WO or RW) of b.
func NewWOReg[T Word](b *Block, name string) (WOReg[T], error) {
	f, err := bind[T](b, name, Access.Writable)
	return WOReg[T]{b: b, f: f}, err
}

func (r WOReg[T]) Field() Field { return r.f }
func (r WOReg[T]) Set(v T)      { mmio.Store(r.b.mem, r.b.base+r.f.Offset, r.f.Width, uint32(v)) }
