package rename

import "strings"

// Constant renames the package-qualified names found in a string constant,
// such as the argument of Class.forName ("javax.inject.Inject") or a
// resource path ("javax/inject/messages.properties"). Each maximal run of
// identifier characters and separators is considered; the first separator
// of a run ('.' or '/') determines its form. Descriptors embedded in strings
// ("Ljavax/inject/Inject;") are handled by skipping a leading 'L' or '['
// when the remainder of the run matches.
func (r *PackageRenames) Constant(s string) (string, bool) {
	if len(r.renames) == 0 {
		return s, false
	}
	var b strings.Builder
	changed := false
	last := 0
	for i := 0; i < len(s); {
		if !isNameChar(s[i]) {
			i++
			continue
		}
		j := i
		for j < len(s) && (isNameChar(s[j]) || s[j] == '.' || s[j] == '/') {
			j++
		}
		if renamed, ok := r.constantRun(s[i:j]); ok {
			b.WriteString(s[last:i])
			b.WriteString(renamed)
			last = j
			changed = true
		}
		i = j
	}
	if !changed {
		return s, false
	}
	b.WriteString(s[last:])
	return b.String(), true
}

func (r *PackageRenames) constantRun(run string) (string, bool) {
	sep := strings.IndexAny(run, "./")
	if sep <= 0 {
		return run, false
	}
	if renamed, ok := r.qualifiedName(run, run[sep]); ok {
		return renamed, true
	}
	// descriptor forms such as "Ljavax/inject/Inject" or "[Ljavax/inject/Inject"
	head := 0
	for head < len(run) && run[head] == '[' {
		head++
	}
	if head < len(run) && run[head] == 'L' {
		head++
	}
	if head == 0 || head >= sep {
		return run, false
	}
	if renamed, ok := r.qualifiedName(run[head:], run[sep]); ok {
		return run[:head] + renamed, true
	}
	return run, false
}

// qualifiedName renames a package prefix of name, whose segments are
// separated by sep. A trailing separator is kept.
func (r *PackageRenames) qualifiedName(name string, sep byte) (string, bool) {
	binary := name
	if sep == '.' {
		if strings.IndexByte(name, '/') >= 0 {
			return name, false
		}
		binary = ToBinary(name)
	}
	from, to, ok := r.lookup(strings.TrimSuffix(binary, "/"))
	if !ok {
		return name, false
	}
	renamed := to + binary[len(from):]
	if sep == '.' {
		renamed = ToDotted(renamed)
	}
	return renamed, renamed != name
}

func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '$' || c >= 0x80
}
