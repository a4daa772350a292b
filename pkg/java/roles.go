package java

import (
	"encoding/binary"
	"fmt"
	"strings"

	terrors "github.com/stackb/jvm-transformer/pkg/errors"
)

// Role is the way a Utf8 constant is referenced, which determines how its
// value is interpreted. Roles are ordered: a larger value is more specific
// and wins when a constant is referenced in several ways.
type Role uint8

const (
	// RoleNone marks a Utf8 constant holding a member name, attribute name
	// or other text that never carries a class name.
	RoleNone Role = iota
	// RoleString marks String constant values and string annotation values.
	RoleString
	// RolePackage marks Package constant names.
	RolePackage
	// RoleSignature marks generic signatures.
	RoleSignature
	// RoleDescriptor marks field, method and array type descriptors.
	RoleDescriptor
	// RoleClass marks binary class names.
	RoleClass
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleString:
		return "string"
	case RolePackage:
		return "package"
	case RoleSignature:
		return "signature"
	case RoleDescriptor:
		return "descriptor"
	case RoleClass:
		return "class"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// Roles computes the role of every Utf8 constant that carries a name,
// descriptor, signature or string value, keyed by constant pool index. The
// constant pool and the class, field, method, Code and Record component
// attributes are walked, including annotations and type annotations.
func (cf *ClassFile) Roles() (map[uint16]Role, error) {
	w := &roleWalker{cf: cf, roles: make(map[uint16]Role)}
	for i, c := range cf.ConstantPool {
		switch c.Kind {
		case ConstantKindClass:
			name, _ := cf.Utf8(c.Index1)
			if strings.HasPrefix(name, "[") {
				w.mark(c.Index1, RoleDescriptor)
			} else {
				w.mark(c.Index1, RoleClass)
			}
		case ConstantKindString:
			w.mark(c.Index1, RoleString)
		case ConstantKindMethodType:
			w.mark(c.Index1, RoleDescriptor)
		case ConstantKindNameAndType:
			w.mark(c.Index2, RoleDescriptor)
		case ConstantKindPackage:
			w.mark(c.Index1, RolePackage)
		}
		if w.err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, w.err)
		}
	}
	w.attributes("class", cf.Attributes)
	for _, m := range cf.Fields {
		w.mark(m.DescriptorIndex, RoleDescriptor)
		w.attributes("field", m.Attributes)
	}
	for _, m := range cf.Methods {
		w.mark(m.DescriptorIndex, RoleDescriptor)
		w.attributes("method", m.Attributes)
	}
	if w.err != nil {
		return nil, w.err
	}
	return w.roles, nil
}

type roleWalker struct {
	cf    *ClassFile
	roles map[uint16]Role
	err   error
}

func (w *roleWalker) mark(index uint16, role Role) {
	if w.err != nil {
		return
	}
	if _, err := w.cf.Utf8(index); err != nil {
		w.err = &terrors.FormatError{Reason: err.Error()}
		return
	}
	if role > w.roles[index] {
		w.roles[index] = role
	}
}

func (w *roleWalker) attributes(owner string, attrs []Attribute) {
	for _, a := range attrs {
		if w.err != nil {
			return
		}
		name, err := w.cf.Utf8(a.NameIndex)
		if err != nil {
			w.err = &terrors.FormatError{Reason: fmt.Sprintf("%s attribute name: %v", owner, err)}
			return
		}
		r := &infoReader{data: a.Info}
		w.attribute(name, r)
		if w.err == nil && r.err != nil {
			w.err = &terrors.FormatError{Offset: r.off, Reason: fmt.Sprintf("%s attribute %s: %v", owner, name, r.err)}
		}
	}
}

func (w *roleWalker) attribute(name string, r *infoReader) {
	switch name {
	case "Signature":
		w.mark(r.u2(), RoleSignature)
	case "Code":
		r.skip(4) // max_stack, max_locals
		r.skip(int(r.u4()))
		r.skip(8 * int(r.u2())) // exception_table
		if r.err != nil {
			return
		}
		attrs := r.attributes()
		if r.err == nil {
			w.attributes("Code", attrs)
		}
	case "LocalVariableTable", "LocalVariableTypeTable":
		role := RoleDescriptor
		if name == "LocalVariableTypeTable" {
			role = RoleSignature
		}
		for n := r.u2(); n > 0 && r.err == nil; n-- {
			r.skip(6) // start_pc, length, name_index
			w.mark(r.u2(), role)
			r.skip(2) // index
		}
	case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
		for n := r.u2(); n > 0 && r.err == nil && w.err == nil; n-- {
			w.annotation(r)
		}
	case "RuntimeVisibleParameterAnnotations", "RuntimeInvisibleParameterAnnotations":
		for p := r.u1(); p > 0 && r.err == nil; p-- {
			for n := r.u2(); n > 0 && r.err == nil && w.err == nil; n-- {
				w.annotation(r)
			}
		}
	case "RuntimeVisibleTypeAnnotations", "RuntimeInvisibleTypeAnnotations":
		for n := r.u2(); n > 0 && r.err == nil && w.err == nil; n-- {
			w.typeAnnotation(r)
		}
	case "AnnotationDefault":
		w.elementValue(r)
	case "Record":
		for n := r.u2(); n > 0 && r.err == nil && w.err == nil; n-- {
			r.skip(2) // name_index
			w.mark(r.u2(), RoleDescriptor)
			attrs := r.attributes()
			if r.err == nil {
				w.attributes("Record component", attrs)
			}
		}
	}
}

func (w *roleWalker) annotation(r *infoReader) {
	w.mark(r.u2(), RoleDescriptor)
	for n := r.u2(); n > 0 && r.err == nil && w.err == nil; n-- {
		r.skip(2) // element_name_index
		w.elementValue(r)
	}
}

func (w *roleWalker) elementValue(r *infoReader) {
	tag := r.u1()
	if r.err != nil {
		return
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		r.skip(2)
	case 's':
		w.mark(r.u2(), RoleString)
	case 'e':
		w.mark(r.u2(), RoleDescriptor)
		r.skip(2) // const_name_index
	case 'c':
		w.mark(r.u2(), RoleDescriptor)
	case '@':
		w.annotation(r)
	case '[':
		for n := r.u2(); n > 0 && r.err == nil && w.err == nil; n-- {
			w.elementValue(r)
		}
	default:
		r.err = fmt.Errorf("invalid element value tag %q", tag)
	}
}

func (w *roleWalker) typeAnnotation(r *infoReader) {
	target := r.u1()
	switch {
	case target == 0x00 || target == 0x01: // type_parameter_target
		r.skip(1)
	case target == 0x10: // supertype_target
		r.skip(2)
	case target == 0x11 || target == 0x12: // type_parameter_bound_target
		r.skip(2)
	case target >= 0x13 && target <= 0x15: // empty_target
	case target == 0x16: // formal_parameter_target
		r.skip(1)
	case target == 0x17: // throws_target
		r.skip(2)
	case target == 0x40 || target == 0x41: // localvar_target
		r.skip(6 * int(r.u2()))
	case target == 0x42: // catch_target
		r.skip(2)
	case target >= 0x43 && target <= 0x46: // offset_target
		r.skip(2)
	case target >= 0x47 && target <= 0x4B: // type_argument_target
		r.skip(3)
	default:
		if r.err == nil {
			r.err = fmt.Errorf("invalid type annotation target %#x", target)
		}
		return
	}
	r.skip(2 * int(r.u1())) // type_path
	if r.err == nil {
		w.annotation(r)
	}
}

// infoReader reads attribute payloads. The first failure is kept in err and
// turns every later read into a no-op returning zero.
type infoReader struct {
	data []byte
	off  int
	err  error
}

func (r *infoReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("truncated: need %d bytes, have %d", n, len(r.data)-r.off)
		return false
	}
	return true
}

func (r *infoReader) skip(n int) {
	if r.need(n) {
		r.off += n
	}
}

func (r *infoReader) u1() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

func (r *infoReader) u2() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

func (r *infoReader) u4() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *infoReader) attributes() []Attribute {
	d := &decoder{data: r.data, off: r.off}
	attrs, err := d.attributes()
	if err != nil {
		r.err = err
		return nil
	}
	r.off = d.off
	return attrs
}
