package regs

import (
	"regmap-go/errcode"
	"regmap-go/mmio"
)

// Layout is the fixed, ordered shape of one peripheral's registers.
type Layout struct {
	name   string
	size   uintptr
	align  uintptr
	fields []Field
	index  map[string]int
}

// NewLayout validates fields against the hardware contract: supported
// widths, natural alignment, strictly increasing non-overlapping offsets,
// everything inside size.
func NewLayout(name string, size uintptr, fields ...Field) (*Layout, error) {
	const op = "layout"
	l := &Layout{
		name:   name,
		size:   size,
		align:  1,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	var prev *Field
	for i := range fields {
		f := fields[i]
		switch {
		case f.Name == "":
			return nil, errcode.New(errcode.InvalidParams, op, name+": unnamed field")
		case !f.Width.Valid():
			return nil, errcode.New(errcode.BadWidth, op, name+"."+f.Name)
		case f.Offset%f.Width.Bytes() != 0:
			return nil, errcode.New(errcode.Misaligned, op, f.String())
		case prev != nil && f.Offset < prev.end():
			return nil, errcode.New(errcode.Overlap, op, f.String()+" after "+prev.String())
		case f.end() > size:
			return nil, errcode.New(errcode.OutOfRange, op, f.String()+" past "+mmio.Hex(uint64(size)))
		}
		if _, dup := l.index[f.Name]; dup {
			return nil, errcode.New(errcode.InvalidParams, op, name+": duplicate field "+f.Name)
		}
		if f.Width.Bytes() > l.align {
			l.align = f.Width.Bytes()
		}
		l.index[f.Name] = len(l.fields)
		l.fields = append(l.fields, f)
		prev = &l.fields[len(l.fields)-1]
	}
	return l, nil
}

// MustLayout is NewLayout for package-level layouts.
func MustLayout(name string, size uintptr, fields ...Field) *Layout {
	l, err := NewLayout(name, size, fields...)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Layout) Name() string   { return l.name }
func (l *Layout) Size() uintptr  { return l.size }
func (l *Layout) Align() uintptr { return l.align }
func (l *Layout) Len() int      { return len(l.fields) }

// Fields returns the fields in offset order.
func (l *Layout) Fields() []Field { return append([]Field(nil), l.fields...) }

func (l *Layout) Field(name string) (Field, bool) {
	i, ok := l.index[name]
	if !ok {
		return Field{}, false
	}
	return l.fields[i], true
}

// MustField is Field for names known at compile time.
func (l *Layout) MustField(name string) Field {
	f, ok := l.Field(name)
	if !ok {
		panic(errcode.New(errcode.UnknownField, l.name, name))
	}
	return f
}

func (l *Layout) Offset(name string) (uintptr, bool) {
	f, ok := l.Field(name)
	return f.Offset, ok
}

// Has reports whether f is exactly one of l's fields.
func (l *Layout) Has(f Field) bool {
	i, ok := l.index[f.Name]
	return ok && l.fields[i] == f
}
