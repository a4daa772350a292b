package rename

import (
	"errors"
	"strings"
)

var errSyntax = errors.New("signature syntax error")

// Descriptor renames every class name embedded in a field or method
// descriptor such as "(Ljavax/inject/Provider;I)[Ljava/lang/String;".
// Primitive and array syntax is left intact. A descriptor that does not
// parse is returned unchanged.
func (r *PackageRenames) Descriptor(desc string) (string, bool) {
	if strings.IndexByte(desc, 'L') < 0 {
		return desc, false
	}
	var b strings.Builder
	changed := false
	for i := 0; i < len(desc); {
		c := desc[i]
		switch c {
		case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 'V', '[', '(', ')':
			b.WriteByte(c)
			i++
		case 'L':
			end := strings.IndexByte(desc[i:], ';')
			if end < 0 {
				return desc, false
			}
			name := desc[i+1 : i+end]
			renamed, ok := r.ClassName(name)
			changed = changed || ok
			b.WriteByte('L')
			b.WriteString(renamed)
			b.WriteByte(';')
			i += end + 1
		default:
			return desc, false
		}
	}
	if !changed {
		return desc, false
	}
	return b.String(), true
}

// Signature renames the class names embedded in a class, method or field
// generic signature. Type variables, type parameter names and inner class
// suffixes are never renamed. A signature that does not parse is returned
// unchanged.
func (r *PackageRenames) Signature(sig string) (string, bool) {
	if strings.IndexByte(sig, 'L') < 0 {
		return sig, false
	}
	p := &signatureParser{renames: r, in: sig}
	if err := p.parse(); err != nil {
		return sig, false
	}
	if !p.changed {
		return sig, false
	}
	return p.out.String(), true
}

// signatureParser is a recursive descent parser over the generic signature
// grammar that copies its input to out, renaming package-qualified class
// names on the way.
type signatureParser struct {
	renames *PackageRenames
	in      string
	pos     int
	out     strings.Builder
	changed bool
}

func (p *signatureParser) peek() byte {
	if p.pos >= len(p.in) {
		return 0
	}
	return p.in[p.pos]
}

func (p *signatureParser) expect(c byte) error {
	if p.peek() != c {
		return errSyntax
	}
	p.out.WriteByte(c)
	p.pos++
	return nil
}

func (p *signatureParser) parse() error {
	if p.peek() == '<' {
		if err := p.typeParameters(); err != nil {
			return err
		}
	}
	if p.peek() == '(' {
		return p.methodRest()
	}
	// class signature (superclass + interfaces) or field signature
	if p.pos >= len(p.in) {
		return errSyntax
	}
	for p.pos < len(p.in) {
		if err := p.referenceType(); err != nil {
			return err
		}
	}
	return nil
}

func (p *signatureParser) methodRest() error {
	if err := p.expect('('); err != nil {
		return err
	}
	for p.peek() != ')' {
		if p.pos >= len(p.in) {
			return errSyntax
		}
		if err := p.javaType(); err != nil {
			return err
		}
	}
	p.out.WriteByte(')')
	p.pos++
	if p.peek() == 'V' {
		p.out.WriteByte('V')
		p.pos++
	} else if err := p.javaType(); err != nil {
		return err
	}
	for p.peek() == '^' {
		p.out.WriteByte('^')
		p.pos++
		if err := p.referenceType(); err != nil {
			return err
		}
	}
	if p.pos != len(p.in) {
		return errSyntax
	}
	return nil
}

func (p *signatureParser) typeParameters() error {
	if err := p.expect('<'); err != nil {
		return err
	}
	for p.peek() != '>' {
		if p.pos >= len(p.in) {
			return errSyntax
		}
		// identifier
		end := strings.IndexByte(p.in[p.pos:], ':')
		if end <= 0 {
			return errSyntax
		}
		p.out.WriteString(p.in[p.pos : p.pos+end])
		p.pos += end
		// class bound, possibly empty
		if err := p.expect(':'); err != nil {
			return err
		}
		if c := p.peek(); c == 'L' || c == 'T' || c == '[' {
			if err := p.referenceType(); err != nil {
				return err
			}
		}
		// interface bounds
		for p.peek() == ':' {
			p.out.WriteByte(':')
			p.pos++
			if err := p.referenceType(); err != nil {
				return err
			}
		}
	}
	p.out.WriteByte('>')
	p.pos++
	return nil
}

func (p *signatureParser) javaType() error {
	switch p.peek() {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		p.out.WriteByte(p.in[p.pos])
		p.pos++
		return nil
	}
	return p.referenceType()
}

func (p *signatureParser) referenceType() error {
	switch p.peek() {
	case 'L':
		return p.classType()
	case 'T':
		end := strings.IndexByte(p.in[p.pos:], ';')
		if end < 0 {
			return errSyntax
		}
		p.out.WriteString(p.in[p.pos : p.pos+end+1])
		p.pos += end + 1
		return nil
	case '[':
		p.out.WriteByte('[')
		p.pos++
		return p.javaType()
	}
	return errSyntax
}

func (p *signatureParser) classType() error {
	if err := p.expect('L'); err != nil {
		return err
	}
	// package specifier and simple class name
	end := strings.IndexAny(p.in[p.pos:], "<.;")
	if end <= 0 {
		return errSyntax
	}
	name := p.in[p.pos : p.pos+end]
	renamed, ok := p.renames.ClassName(name)
	p.changed = p.changed || ok
	p.out.WriteString(renamed)
	p.pos += end
	for {
		switch p.peek() {
		case '<':
			if err := p.typeArguments(); err != nil {
				return err
			}
		case '.':
			// inner class suffix
			p.out.WriteByte('.')
			p.pos++
			end := strings.IndexAny(p.in[p.pos:], "<.;")
			if end <= 0 {
				return errSyntax
			}
			p.out.WriteString(p.in[p.pos : p.pos+end])
			p.pos += end
		case ';':
			p.out.WriteByte(';')
			p.pos++
			return nil
		default:
			return errSyntax
		}
	}
}

func (p *signatureParser) typeArguments() error {
	if err := p.expect('<'); err != nil {
		return err
	}
	for p.peek() != '>' {
		switch p.peek() {
		case 0:
			return errSyntax
		case '*':
			p.out.WriteByte('*')
			p.pos++
			continue
		case '+', '-':
			p.out.WriteByte(p.in[p.pos])
			p.pos++
		}
		if err := p.referenceType(); err != nil {
			return err
		}
	}
	p.out.WriteByte('>')
	p.pos++
	return nil
}
