package java

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxUtf8Length is the largest number of bytes a Utf8 constant can hold.
const MaxUtf8Length = math.MaxUint16

// Bytes encodes the class file. Constant lengths and attribute lengths are
// recomputed from the current values, so a class file that was parsed and not
// modified encodes to its original bytes.
func (cf *ClassFile) Bytes() ([]byte, error) {
	e := &encoder{}
	e.u4(ClassMagic)
	e.u2(cf.MinorVersion)
	e.u2(cf.MajorVersion)
	if len(cf.ConstantPool) > math.MaxUint16 {
		return nil, fmt.Errorf("constant pool has %d entries", len(cf.ConstantPool))
	}
	e.u2(uint16(len(cf.ConstantPool)))
	for i := 1; i < len(cf.ConstantPool); i++ {
		c := cf.ConstantPool[i]
		if c.Kind == ConstantKindPlaceholder {
			continue
		}
		e.u1(uint8(c.Kind))
		switch c.Kind {
		case ConstantKindUtf8:
			if len(c.Value) > MaxUtf8Length {
				return nil, fmt.Errorf("constant %d: %d bytes exceeds the %d byte limit", i, len(c.Value), MaxUtf8Length)
			}
			e.u2(uint16(len(c.Value)))
			e.buf = append(e.buf, c.Value...)
		case ConstantKindInteger, ConstantKindFloat, ConstantKindLong, ConstantKindDouble:
			e.buf = append(e.buf, c.Raw...)
		case ConstantKindClass, ConstantKindString, ConstantKindMethodType, ConstantKindModule, ConstantKindPackage:
			e.u2(c.Index1)
		case ConstantKindFieldref, ConstantKindMethodref, ConstantKindInterfaceMethodref,
			ConstantKindNameAndType, ConstantKindDynamic, ConstantKindInvokeDynamic:
			e.u2(c.Index1)
			e.u2(c.Index2)
		case ConstantKindMethodHandle:
			e.u1(c.RefKind)
			e.u2(c.Index1)
		default:
			return nil, fmt.Errorf("constant %d: unknown kind %v", i, c.Kind)
		}
	}
	e.u2(cf.AccessFlags)
	e.u2(cf.ThisClass)
	e.u2(cf.SuperClass)
	e.u2(uint16(len(cf.Interfaces)))
	for _, index := range cf.Interfaces {
		e.u2(index)
	}
	e.members(cf.Fields)
	e.members(cf.Methods)
	e.attributes(cf.Attributes)
	return e.buf, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) u1(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) u2(v uint16) {
	e.buf = binary.BigEndian.AppendUint16(e.buf, v)
}

func (e *encoder) u4(v uint32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, v)
}

func (e *encoder) members(members []Member) {
	e.u2(uint16(len(members)))
	for _, m := range members {
		e.u2(m.AccessFlags)
		e.u2(m.NameIndex)
		e.u2(m.DescriptorIndex)
		e.attributes(m.Attributes)
	}
}

func (e *encoder) attributes(attrs []Attribute) {
	e.u2(uint16(len(attrs)))
	for _, a := range attrs {
		e.u2(a.NameIndex)
		e.u4(uint32(len(a.Info)))
		e.buf = append(e.buf, a.Info...)
	}
}
