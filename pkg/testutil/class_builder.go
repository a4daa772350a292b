package testutil

import (
	"encoding/binary"
	"math"
)

// ClassBuilder assembles class files for tests. Constant pool entries are
// deduplicated the way javac does, so a name used in several places shares a
// single Utf8 entry.
type ClassBuilder struct {
	pool       [][]byte
	index      map[string]uint16
	access     uint16
	this       uint16
	super      uint16
	interfaces []uint16
	fields     [][]byte
	methods    [][]byte
	attributes [][]byte
}

// Attr is an encoded attribute.
type Attr []byte

// NewClassBuilder starts a public class with the given binary name,
// superclass and interfaces. An empty super leaves super_class zero.
func NewClassBuilder(name, super string, interfaces ...string) *ClassBuilder {
	b := &ClassBuilder{
		pool:   [][]byte{nil},
		index:  make(map[string]uint16),
		access: 0x0021,
	}
	b.this = b.Class(name)
	if super != "" {
		b.super = b.Class(super)
	}
	for _, iface := range interfaces {
		b.interfaces = append(b.interfaces, b.Class(iface))
	}
	return b
}

// Access sets the class access flags.
func (b *ClassBuilder) Access(flags uint16) *ClassBuilder {
	b.access = flags
	return b
}

func (b *ClassBuilder) add(key string, entry []byte, slots int) uint16 {
	if i, ok := b.index[key]; ok {
		return i
	}
	i := uint16(len(b.pool))
	b.pool = append(b.pool, entry)
	for s := 1; s < slots; s++ {
		b.pool = append(b.pool, nil)
	}
	b.index[key] = i
	return i
}

// Utf8 adds a Utf8 constant.
func (b *ClassBuilder) Utf8(s string) uint16 {
	entry := []byte{1}
	entry = binary.BigEndian.AppendUint16(entry, uint16(len(s)))
	entry = append(entry, s...)
	return b.add("utf8:"+s, entry, 1)
}

func (b *ClassBuilder) ref1(tag byte, key string, s string) uint16 {
	index := b.Utf8(s)
	return b.add(key, binary.BigEndian.AppendUint16([]byte{tag}, index), 1)
}

func (b *ClassBuilder) ref2(tag byte, key string, i1, i2 uint16) uint16 {
	entry := binary.BigEndian.AppendUint16([]byte{tag}, i1)
	return b.add(key, binary.BigEndian.AppendUint16(entry, i2), 1)
}

// Class adds a Class constant.
func (b *ClassBuilder) Class(name string) uint16 {
	return b.ref1(7, "class:"+name, name)
}

// StringConstant adds a String constant.
func (b *ClassBuilder) StringConstant(s string) uint16 {
	return b.ref1(8, "string:"+s, s)
}

// MethodType adds a MethodType constant.
func (b *ClassBuilder) MethodType(desc string) uint16 {
	return b.ref1(16, "methodtype:"+desc, desc)
}

// Package adds a Package constant.
func (b *ClassBuilder) Package(name string) uint16 {
	return b.ref1(20, "package:"+name, name)
}

// NameAndType adds a NameAndType constant.
func (b *ClassBuilder) NameAndType(name, desc string) uint16 {
	return b.ref2(12, "nat:"+name+":"+desc, b.Utf8(name), b.Utf8(desc))
}

// Fieldref adds a Fieldref constant.
func (b *ClassBuilder) Fieldref(class, name, desc string) uint16 {
	return b.ref2(9, "fieldref:"+class+"."+name+":"+desc, b.Class(class), b.NameAndType(name, desc))
}

// Methodref adds a Methodref constant.
func (b *ClassBuilder) Methodref(class, name, desc string) uint16 {
	return b.ref2(10, "methodref:"+class+"."+name+":"+desc, b.Class(class), b.NameAndType(name, desc))
}

// MethodHandle adds an invokestatic MethodHandle constant.
func (b *ClassBuilder) MethodHandle(class, name, desc string) uint16 {
	ref := b.Methodref(class, name, desc)
	entry := binary.BigEndian.AppendUint16([]byte{15, 6}, ref)
	return b.add("methodhandle:"+class+"."+name+":"+desc, entry, 1)
}

// InvokeDynamic adds an InvokeDynamic constant for the given bootstrap
// method attribute index.
func (b *ClassBuilder) InvokeDynamic(bootstrap uint16, name, desc string) uint16 {
	return b.ref2(18, "indy:"+name+":"+desc, bootstrap, b.NameAndType(name, desc))
}

// Integer adds an Integer constant.
func (b *ClassBuilder) Integer(v int32) uint16 {
	entry := binary.BigEndian.AppendUint32([]byte{3}, uint32(v))
	return b.add("int:"+string(entry), entry, 1)
}

// Long adds a Long constant, which takes two constant pool slots.
func (b *ClassBuilder) Long(v int64) uint16 {
	entry := binary.BigEndian.AppendUint64([]byte{5}, uint64(v))
	return b.add("long:"+string(entry), entry, 2)
}

// Double adds a Double constant, which takes two constant pool slots.
func (b *ClassBuilder) Double(v float64) uint16 {
	entry := binary.BigEndian.AppendUint64([]byte{6}, math.Float64bits(v))
	return b.add("double:"+string(entry), entry, 2)
}

// Field adds a field.
func (b *ClassBuilder) Field(access uint16, name, desc string, attrs ...Attr) *ClassBuilder {
	b.fields = append(b.fields, b.member(access, name, desc, attrs))
	return b
}

// Method adds a method.
func (b *ClassBuilder) Method(access uint16, name, desc string, attrs ...Attr) *ClassBuilder {
	b.methods = append(b.methods, b.member(access, name, desc, attrs))
	return b
}

// Attribute adds class attributes.
func (b *ClassBuilder) Attribute(attrs ...Attr) *ClassBuilder {
	for _, a := range attrs {
		b.attributes = append(b.attributes, a)
	}
	return b
}

func (b *ClassBuilder) member(access uint16, name, desc string, attrs []Attr) []byte {
	m := binary.BigEndian.AppendUint16(nil, access)
	m = binary.BigEndian.AppendUint16(m, b.Utf8(name))
	m = binary.BigEndian.AppendUint16(m, b.Utf8(desc))
	m = binary.BigEndian.AppendUint16(m, uint16(len(attrs)))
	for _, a := range attrs {
		m = append(m, a...)
	}
	return m
}

// Attr encodes an attribute with the given name and payload.
func (b *ClassBuilder) Attr(name string, info []byte) Attr {
	a := binary.BigEndian.AppendUint16(nil, b.Utf8(name))
	a = binary.BigEndian.AppendUint32(a, uint32(len(info)))
	return append(a, info...)
}

// Signature encodes a Signature attribute.
func (b *ClassBuilder) Signature(sig string) Attr {
	return b.Attr("Signature", u2(b.Utf8(sig)))
}

// SourceFile encodes a SourceFile attribute.
func (b *ClassBuilder) SourceFile(name string) Attr {
	return b.Attr("SourceFile", u2(b.Utf8(name)))
}

// Code encodes a Code attribute whose body is a single return instruction.
func (b *ClassBuilder) Code(attrs ...Attr) Attr {
	info := []byte{0, 1, 0, 1} // max_stack, max_locals
	info = binary.BigEndian.AppendUint32(info, 1)
	info = append(info, 0xb1) // return
	info = append(info, 0, 0) // exception_table_length
	info = binary.BigEndian.AppendUint16(info, uint16(len(attrs)))
	for _, a := range attrs {
		info = append(info, a...)
	}
	return b.Attr("Code", info)
}

// LocalVariable is an entry of a LocalVariableTable or
// LocalVariableTypeTable attribute. Type is a descriptor or a signature.
type LocalVariable struct {
	Name string
	Type string
}

// LocalVariableTable encodes a LocalVariableTable attribute.
func (b *ClassBuilder) LocalVariableTable(vars ...LocalVariable) Attr {
	return b.Attr("LocalVariableTable", b.localVariables(vars))
}

// LocalVariableTypeTable encodes a LocalVariableTypeTable attribute.
func (b *ClassBuilder) LocalVariableTypeTable(vars ...LocalVariable) Attr {
	return b.Attr("LocalVariableTypeTable", b.localVariables(vars))
}

func (b *ClassBuilder) localVariables(vars []LocalVariable) []byte {
	info := u2(uint16(len(vars)))
	for i, v := range vars {
		info = append(info, 0, 0, 0, 1) // start_pc, length
		info = binary.BigEndian.AppendUint16(info, b.Utf8(v.Name))
		info = binary.BigEndian.AppendUint16(info, b.Utf8(v.Type))
		info = binary.BigEndian.AppendUint16(info, uint16(i))
	}
	return info
}

// RuntimeVisibleAnnotations encodes a RuntimeVisibleAnnotations attribute.
func (b *ClassBuilder) RuntimeVisibleAnnotations(annotations ...[]byte) Attr {
	info := u2(uint16(len(annotations)))
	for _, a := range annotations {
		info = append(info, a...)
	}
	return b.Attr("RuntimeVisibleAnnotations", info)
}

// RuntimeVisibleParameterAnnotations encodes a parameter annotations
// attribute with one annotation list per parameter.
func (b *ClassBuilder) RuntimeVisibleParameterAnnotations(params ...[][]byte) Attr {
	info := []byte{uint8(len(params))}
	for _, annotations := range params {
		info = binary.BigEndian.AppendUint16(info, uint16(len(annotations)))
		for _, a := range annotations {
			info = append(info, a...)
		}
	}
	return b.Attr("RuntimeVisibleParameterAnnotations", info)
}

// RuntimeVisibleTypeAnnotations encodes a type annotations attribute whose
// annotations target a field type (empty_target) with an empty type path.
func (b *ClassBuilder) RuntimeVisibleTypeAnnotations(annotations ...[]byte) Attr {
	info := u2(uint16(len(annotations)))
	for _, a := range annotations {
		info = append(info, 0x13, 0) // target_type, type_path length
		info = append(info, a...)
	}
	return b.Attr("RuntimeVisibleTypeAnnotations", info)
}

// AnnotationDefault encodes an AnnotationDefault attribute.
func (b *ClassBuilder) AnnotationDefault(value []byte) Attr {
	return b.Attr("AnnotationDefault", value)
}

// Annotation encodes an annotation of the given type descriptor with
// element value pairs built by the *Value methods.
func (b *ClassBuilder) Annotation(typeDesc string, pairs ...[]byte) []byte {
	a := u2(b.Utf8(typeDesc))
	a = binary.BigEndian.AppendUint16(a, uint16(len(pairs)))
	for _, p := range pairs {
		a = append(a, p...)
	}
	return a
}

// Pair encodes an element value pair.
func (b *ClassBuilder) Pair(name string, value []byte) []byte {
	return append(u2(b.Utf8(name)), value...)
}

// StringValue encodes a string element value.
func (b *ClassBuilder) StringValue(s string) []byte {
	return append([]byte{'s'}, u2(b.Utf8(s))...)
}

// IntValue encodes an int element value.
func (b *ClassBuilder) IntValue(v int32) []byte {
	return append([]byte{'I'}, u2(b.Integer(v))...)
}

// EnumValue encodes an enum element value.
func (b *ClassBuilder) EnumValue(typeDesc, constName string) []byte {
	v := append([]byte{'e'}, u2(b.Utf8(typeDesc))...)
	return binary.BigEndian.AppendUint16(v, b.Utf8(constName))
}

// ClassValue encodes a class element value.
func (b *ClassBuilder) ClassValue(desc string) []byte {
	return append([]byte{'c'}, u2(b.Utf8(desc))...)
}

// AnnotationValue encodes a nested annotation element value.
func (b *ClassBuilder) AnnotationValue(annotation []byte) []byte {
	return append([]byte{'@'}, annotation...)
}

// ArrayValue encodes an array element value.
func (b *ClassBuilder) ArrayValue(values ...[]byte) []byte {
	v := append([]byte{'['}, u2(uint16(len(values)))...)
	for _, e := range values {
		v = append(v, e...)
	}
	return v
}

// Bytes encodes the class file.
func (b *ClassBuilder) Bytes() []byte {
	out := binary.BigEndian.AppendUint32(nil, 0xCAFEBABE)
	out = append(out, 0, 0, 0, 61) // Java 17
	out = binary.BigEndian.AppendUint16(out, uint16(len(b.pool)))
	for _, entry := range b.pool {
		out = append(out, entry...)
	}
	out = binary.BigEndian.AppendUint16(out, b.access)
	out = binary.BigEndian.AppendUint16(out, b.this)
	out = binary.BigEndian.AppendUint16(out, b.super)
	out = binary.BigEndian.AppendUint16(out, uint16(len(b.interfaces)))
	for _, i := range b.interfaces {
		out = binary.BigEndian.AppendUint16(out, i)
	}
	for _, members := range [][][]byte{b.fields, b.methods} {
		out = binary.BigEndian.AppendUint16(out, uint16(len(members)))
		for _, m := range members {
			out = append(out, m...)
		}
	}
	out = binary.BigEndian.AppendUint16(out, uint16(len(b.attributes)))
	for _, a := range b.attributes {
		out = append(out, a...)
	}
	return out
}

func u2(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}
