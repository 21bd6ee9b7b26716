package regs

import (
	"reflect"
	"strconv"
	"strings"

	"regmap-go/errcode"
	"regmap-go/mmio"
)

// LayoutOf derives a Layout from a register map struct. Field offsets come
// from the Go struct layout, so padding must be explicit (blank fields).
//
// Supported field types are U8, U16, U32 and arrays of them; arrays expand
// to NAME[i]. Struct tags:
//
//	reg:"ro"                 access class (rw, ro, wo; default rw)
//	effect:"clears flags"    read side effect
func LayoutOf(name string, regmap any) (*Layout, error) {
	t := reflect.TypeOf(regmap)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errcode.New(errcode.InvalidParams, "layout", name+": not a struct")
	}
	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name == "_" {
			continue
		}
		acc, ok := ParseAccess(strings.TrimSpace(sf.Tag.Get("reg")))
		if !ok {
			return nil, errcode.New(errcode.InvalidParams, "layout", name+"."+sf.Name+": bad reg tag")
		}
		effect := sf.Tag.Get("effect")

		switch sf.Type.Kind() {
		case reflect.Array:
			w, ok := widthOfKind(sf.Type.Elem().Kind())
			if !ok {
				return nil, errcode.New(errcode.BadWidth, "layout", name+"."+sf.Name)
			}
			for j := 0; j < sf.Type.Len(); j++ {
				fields = append(fields, Field{
					Name:   sf.Name + "[" + strconv.Itoa(j) + "]",
					Offset: sf.Offset + uintptr(j)*w.Bytes(),
					Width:  w,
					Access: acc,
					Effect: effect,
				})
			}
		default:
			w, ok := widthOfKind(sf.Type.Kind())
			if !ok {
				return nil, errcode.New(errcode.BadWidth, "layout", name+"."+sf.Name)
			}
			fields = append(fields, Field{Name: sf.Name, Offset: sf.Offset, Width: w, Access: acc, Effect: effect})
		}
	}
	return NewLayout(name, t.Size(), fields...)
}

// MustLayoutOf is LayoutOf for package-level layouts.
func MustLayoutOf(name string, regmap any) *Layout {
	l, err := LayoutOf(name, regmap)
	if err != nil {
		panic(err)
	}
	return l
}

func widthOfKind(k reflect.Kind) (mmio.Width, bool) {
	switch k {
	case reflect.Uint8:
		return mmio.Width8, true
	case reflect.Uint16:
		return mmio.Width16, true
	case reflect.Uint32:
		return mmio.Width32, true
	}
	return 0, false
}
