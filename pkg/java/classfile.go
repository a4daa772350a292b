package java

import (
	"encoding/binary"
	"fmt"

	terrors "github.com/stackb/jvm-transformer/pkg/errors"
)

// ClassMagic is the leading four bytes of every class file.
const ClassMagic = 0xCAFEBABE

// ConstantKind is the tag of a constant pool entry.
type ConstantKind uint8

// ConstantKind values, from
// https://docs.oracle.com/javase/specs/jvms/se21/html/jvms-4.html#jvms-4.4
const (
	ConstantKindUtf8               ConstantKind = 1
	ConstantKindInteger            ConstantKind = 3
	ConstantKindFloat              ConstantKind = 4
	ConstantKindLong               ConstantKind = 5
	ConstantKindDouble             ConstantKind = 6
	ConstantKindClass              ConstantKind = 7
	ConstantKindString             ConstantKind = 8
	ConstantKindFieldref           ConstantKind = 9
	ConstantKindMethodref          ConstantKind = 10
	ConstantKindInterfaceMethodref ConstantKind = 11
	ConstantKindNameAndType        ConstantKind = 12
	ConstantKindMethodHandle       ConstantKind = 15
	ConstantKindMethodType         ConstantKind = 16
	ConstantKindDynamic            ConstantKind = 17
	ConstantKindInvokeDynamic      ConstantKind = 18
	ConstantKindModule             ConstantKind = 19
	ConstantKindPackage            ConstantKind = 20

	// ConstantKindPlaceholder is not a real constant kind. It marks index 0
	// and the unusable slot that follows every Long and Double entry.
	ConstantKindPlaceholder ConstantKind = 0
)

var constantKindNames = map[ConstantKind]string{
	ConstantKindUtf8:               "Utf8",
	ConstantKindInteger:            "Integer",
	ConstantKindFloat:              "Float",
	ConstantKindLong:               "Long",
	ConstantKindDouble:             "Double",
	ConstantKindClass:              "Class",
	ConstantKindString:             "String",
	ConstantKindFieldref:           "Fieldref",
	ConstantKindMethodref:          "Methodref",
	ConstantKindInterfaceMethodref: "InterfaceMethodref",
	ConstantKindNameAndType:        "NameAndType",
	ConstantKindMethodHandle:       "MethodHandle",
	ConstantKindMethodType:         "MethodType",
	ConstantKindDynamic:            "Dynamic",
	ConstantKindInvokeDynamic:      "InvokeDynamic",
	ConstantKindModule:             "Module",
	ConstantKindPackage:            "Package",
	ConstantKindPlaceholder:        "Placeholder",
}

func (k ConstantKind) String() string {
	if name, ok := constantKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ConstantKind(%d)", uint8(k))
}

// Constant is a constant pool entry. Only the fields relevant to the kind
// are set: Value for Utf8; Index1 (and Index2) for the symbolic kinds, in
// the order they appear in the class file; RefKind for MethodHandle; Raw for
// the numeric kinds.
type Constant struct {
	Kind    ConstantKind
	Value   string
	Index1  uint16
	Index2  uint16
	RefKind uint8
	Raw     []byte
}

// Attribute is an attribute of a class, field, method, Code attribute or
// record component. Info is the undecoded attribute payload.
type Attribute struct {
	NameIndex uint16
	Info      []byte
}

// Member is a field or method.
type Member struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

// ClassFile is the structure of a class file at the constant pool level.
// ConstantPool is indexed as in the class file: entry 0 is a placeholder,
// as is the entry following a Long or Double.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool []Constant
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []Member
	Methods      []Member
	Attributes   []Attribute
}

// Utf8 returns the value of the Utf8 entry at the given index.
func (cf *ClassFile) Utf8(index uint16) (string, error) {
	c, err := cf.constant(index, ConstantKindUtf8)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// ClassName returns the binary name referenced by the Class entry at the
// given index.
func (cf *ClassFile) ClassName(index uint16) (string, error) {
	c, err := cf.constant(index, ConstantKindClass)
	if err != nil {
		return "", err
	}
	return cf.Utf8(c.Index1)
}

// Name returns the binary name of the class.
func (cf *ClassFile) Name() string {
	name, _ := cf.ClassName(cf.ThisClass)
	return name
}

// SuperName returns the binary name of the superclass, or the empty string
// for java/lang/Object and module-info.
func (cf *ClassFile) SuperName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	name, _ := cf.ClassName(cf.SuperClass)
	return name
}

// InterfaceNames returns the binary names of the direct superinterfaces.
func (cf *ClassFile) InterfaceNames() []string {
	names := make([]string, 0, len(cf.Interfaces))
	for _, index := range cf.Interfaces {
		name, _ := cf.ClassName(index)
		names = append(names, name)
	}
	return names
}

// AccSynthetic marks a class not present in source.
const AccSynthetic = 0x1000

// IsSynthetic reports whether the class is marked synthetic.
func (cf *ClassFile) IsSynthetic() bool {
	return cf.AccessFlags&AccSynthetic != 0
}

// AttributeName returns the name of an attribute.
func (cf *ClassFile) AttributeName(a Attribute) string {
	name, _ := cf.Utf8(a.NameIndex)
	return name
}

func (cf *ClassFile) constant(index uint16, kind ConstantKind) (*Constant, error) {
	// From https://docs.oracle.com/javase/specs/jvms/se21/html/jvms-4.html#jvms-4.4.1
	//
	// A constant_pool index is considered valid if it is greater than
	// zero and less than constant_pool_count, with the exception for
	// constants of type long and double noted in §4.4.5.
	if index == 0 || int(index) >= len(cf.ConstantPool) {
		return nil, fmt.Errorf("constant pool index %d out of range", index)
	}
	c := &cf.ConstantPool[index]
	if c.Kind != kind {
		return nil, fmt.Errorf("constant pool index %d: want %v, got %v", index, kind, c.Kind)
	}
	return c, nil
}

// Parse decodes a class file. Structural problems (bad magic, truncation,
// out of range or mistyped constant pool references) are reported as errors
// matching errors.ErrMalformedInput.
func Parse(data []byte) (*ClassFile, error) {
	d := &decoder{data: data}
	cf, err := d.classFile()
	if err != nil {
		return nil, err
	}
	if err := cf.validate(); err != nil {
		return nil, &terrors.FormatError{Offset: 0, Reason: err.Error()}
	}
	return cf, nil
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) fail(reason string, args ...any) error {
	return &terrors.FormatError{Offset: d.off, Reason: fmt.Sprintf(reason, args...)}
}

func (d *decoder) need(n int) error {
	if n < 0 || d.off+n > len(d.data) {
		return d.fail("truncated: need %d bytes, have %d", n, len(d.data)-d.off)
	}
	return nil
}

func (d *decoder) u1() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.data[d.off]
	d.off++
	return v, nil
}

func (d *decoder) u2() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(d.data[d.off:])
	d.off += 2
	return v, nil
}

func (d *decoder) u4() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	v := d.data[d.off : d.off+n : d.off+n]
	d.off += n
	return v, nil
}

func (d *decoder) classFile() (*ClassFile, error) {
	magic, err := d.u4()
	if err != nil {
		return nil, err
	}
	if magic != ClassMagic {
		return nil, &terrors.FormatError{Offset: 0, Reason: fmt.Sprintf("bad magic %#x", magic)}
	}
	cf := &ClassFile{}
	if cf.MinorVersion, err = d.u2(); err != nil {
		return nil, err
	}
	if cf.MajorVersion, err = d.u2(); err != nil {
		return nil, err
	}
	if cf.ConstantPool, err = d.constantPool(); err != nil {
		return nil, err
	}
	if cf.AccessFlags, err = d.u2(); err != nil {
		return nil, err
	}
	if cf.ThisClass, err = d.u2(); err != nil {
		return nil, err
	}
	if cf.SuperClass, err = d.u2(); err != nil {
		return nil, err
	}
	count, err := d.u2()
	if err != nil {
		return nil, err
	}
	cf.Interfaces = make([]uint16, count)
	for i := range cf.Interfaces {
		if cf.Interfaces[i], err = d.u2(); err != nil {
			return nil, err
		}
	}
	if cf.Fields, err = d.members(); err != nil {
		return nil, err
	}
	if cf.Methods, err = d.members(); err != nil {
		return nil, err
	}
	if cf.Attributes, err = d.attributes(); err != nil {
		return nil, err
	}
	if d.off != len(d.data) {
		return nil, d.fail("%d trailing bytes", len(d.data)-d.off)
	}
	return cf, nil
}

func (d *decoder) constantPool() ([]Constant, error) {
	count, err := d.u2()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, d.fail("constant pool count is zero")
	}
	// The value of the constant_pool_count item is equal to the number of
	// entries in the constant_pool table plus one.
	pool := make([]Constant, count)
	for i := 1; i < int(count); i++ {
		tag, err := d.u1()
		if err != nil {
			return nil, err
		}
		c := Constant{Kind: ConstantKind(tag)}
		switch c.Kind {
		case ConstantKindUtf8:
			n, err := d.u2()
			if err != nil {
				return nil, err
			}
			b, err := d.bytes(int(n))
			if err != nil {
				return nil, err
			}
			c.Value = string(b)
		case ConstantKindInteger, ConstantKindFloat:
			if c.Raw, err = d.bytes(4); err != nil {
				return nil, err
			}
		case ConstantKindLong, ConstantKindDouble:
			if c.Raw, err = d.bytes(8); err != nil {
				return nil, err
			}
		case ConstantKindClass, ConstantKindString, ConstantKindMethodType, ConstantKindModule, ConstantKindPackage:
			if c.Index1, err = d.u2(); err != nil {
				return nil, err
			}
		case ConstantKindFieldref, ConstantKindMethodref, ConstantKindInterfaceMethodref,
			ConstantKindNameAndType, ConstantKindDynamic, ConstantKindInvokeDynamic:
			if c.Index1, err = d.u2(); err != nil {
				return nil, err
			}
			if c.Index2, err = d.u2(); err != nil {
				return nil, err
			}
		case ConstantKindMethodHandle:
			if c.RefKind, err = d.u1(); err != nil {
				return nil, err
			}
			if c.Index1, err = d.u2(); err != nil {
				return nil, err
			}
		default:
			return nil, d.fail("invalid constant pool tag %d at index %d", tag, i)
		}
		pool[i] = c
		if c.Kind == ConstantKindLong || c.Kind == ConstantKindDouble {
			// 8-byte values take up 2 constant pool entries.
			i++
			if i >= int(count) {
				return nil, d.fail("8-byte constant at last constant pool index %d", i-1)
			}
		}
	}
	return pool, nil
}

func (d *decoder) members() ([]Member, error) {
	count, err := d.u2()
	if err != nil {
		return nil, err
	}
	members := make([]Member, count)
	for i := range members {
		m := &members[i]
		if m.AccessFlags, err = d.u2(); err != nil {
			return nil, err
		}
		if m.NameIndex, err = d.u2(); err != nil {
			return nil, err
		}
		if m.DescriptorIndex, err = d.u2(); err != nil {
			return nil, err
		}
		if m.Attributes, err = d.attributes(); err != nil {
			return nil, err
		}
	}
	return members, nil
}

func (d *decoder) attributes() ([]Attribute, error) {
	count, err := d.u2()
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, count)
	for i := range attrs {
		if attrs[i].NameIndex, err = d.u2(); err != nil {
			return nil, err
		}
		n, err := d.u4()
		if err != nil {
			return nil, err
		}
		if uint64(n) > uint64(len(d.data)) {
			return nil, d.fail("attribute length %d exceeds input", n)
		}
		if attrs[i].Info, err = d.bytes(int(n)); err != nil {
			return nil, err
		}
	}
	return attrs, nil
}

// validate checks that every constant pool reference points to an entry of
// the expected kind.
func (cf *ClassFile) validate() error {
	for i, c := range cf.ConstantPool {
		var err error
		switch c.Kind {
		case ConstantKindClass, ConstantKindString, ConstantKindMethodType, ConstantKindModule, ConstantKindPackage:
			_, err = cf.constant(c.Index1, ConstantKindUtf8)
		case ConstantKindNameAndType:
			if _, err = cf.constant(c.Index1, ConstantKindUtf8); err == nil {
				_, err = cf.constant(c.Index2, ConstantKindUtf8)
			}
		case ConstantKindFieldref, ConstantKindMethodref, ConstantKindInterfaceMethodref:
			if _, err = cf.constant(c.Index1, ConstantKindClass); err == nil {
				_, err = cf.constant(c.Index2, ConstantKindNameAndType)
			}
		case ConstantKindDynamic, ConstantKindInvokeDynamic:
			_, err = cf.constant(c.Index2, ConstantKindNameAndType)
		case ConstantKindMethodHandle:
			if c.Index1 == 0 || int(c.Index1) >= len(cf.ConstantPool) {
				err = fmt.Errorf("constant pool index %d out of range", c.Index1)
			}
		}
		if err != nil {
			return fmt.Errorf("constant %d (%v): %w", i, c.Kind, err)
		}
	}
	if _, err := cf.ClassName(cf.ThisClass); err != nil {
		return fmt.Errorf("this_class: %w", err)
	}
	if cf.SuperClass != 0 {
		if _, err := cf.ClassName(cf.SuperClass); err != nil {
			return fmt.Errorf("super_class: %w", err)
		}
	}
	for i, index := range cf.Interfaces {
		if _, err := cf.ClassName(index); err != nil {
			return fmt.Errorf("interface %d: %w", i, err)
		}
	}
	for _, members := range [][]Member{cf.Fields, cf.Methods} {
		for i, m := range members {
			if _, err := cf.Utf8(m.NameIndex); err != nil {
				return fmt.Errorf("member %d name: %w", i, err)
			}
			if _, err := cf.Utf8(m.DescriptorIndex); err != nil {
				return fmt.Errorf("member %d descriptor: %w", i, err)
			}
		}
	}
	return nil
}
