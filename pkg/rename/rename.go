// Package rename computes the renamed forms of JVM class names, descriptors,
// generic signatures and string constants under a set of package renames.
package rename

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dghubble/trie"
)

// PackageRenames maps source packages to target packages. Lookups select the
// longest source package that is a segment prefix of the name being renamed.
// A PackageRenames is immutable once constructed and safe for concurrent use.
type PackageRenames struct {
	renames map[string]string
	known   *trie.PathTrie
}

// New constructs a PackageRenames from a map of package names. Keys and
// values may be given in dotted ("javax.inject") or binary ("javax/inject")
// form.
func New(renames map[string]string) (*PackageRenames, error) {
	r := &PackageRenames{
		renames: make(map[string]string, len(renames)),
		known: trie.NewPathTrieWithConfig(&trie.PathTrieConfig{
			Segmenter: packageSegmenter,
		}),
	}
	for from, to := range renames {
		from = ToBinary(strings.TrimSpace(from))
		to = ToBinary(strings.TrimSpace(to))
		if from == "" || to == "" {
			return nil, fmt.Errorf("invalid package rename %q -> %q", from, to)
		}
		if prev, ok := r.renames[from]; ok && prev != to {
			return nil, fmt.Errorf("conflicting renames for package %q: %q and %q", from, prev, to)
		}
		r.renames[from] = to
		r.known.Put(from, to)
	}
	return r, nil
}

// MustNew is like New but panics on error.
func MustNew(renames map[string]string) *PackageRenames {
	r, err := New(renames)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of package renames.
func (r *PackageRenames) Len() int {
	return len(r.renames)
}

// Map returns a copy of the renames in binary form.
func (r *PackageRenames) Map() map[string]string {
	m := make(map[string]string, len(r.renames))
	for k, v := range r.renames {
		m[k] = v
	}
	return m
}

// String returns the renames in sorted "from=to" form.
func (r *PackageRenames) String() string {
	keys := make([]string, 0, len(r.renames))
	for k := range r.renames {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		keys[i] = k + "=" + r.renames[k]
	}
	return strings.Join(keys, ",")
}

// Invert returns the renames with the direction of every pair swapped.
func (r *PackageRenames) Invert() (*PackageRenames, error) {
	inverted, err := Invert(r.renames)
	if err != nil {
		return nil, err
	}
	return New(inverted)
}

// Invert swaps the keys and values of a rename map. Two keys that rename to
// the same package cannot be inverted.
func Invert(renames map[string]string) (map[string]string, error) {
	inverted := make(map[string]string, len(renames))
	for from, to := range renames {
		if prev, ok := inverted[to]; ok {
			return nil, fmt.Errorf("cannot invert renames: %q and %q both rename to %q", prev, from, to)
		}
		inverted[to] = from
	}
	return inverted, nil
}

// lookup finds the longest rename key that is a segment prefix of name.
func (r *PackageRenames) lookup(name string) (from, to string, ok bool) {
	if len(r.renames) == 0 || name == "" {
		return "", "", false
	}
	r.known.WalkPath(name, func(key string, value interface{}) error {
		from = key
		to = value.(string)
		ok = true
		return nil
	})
	return
}

// Package renames a binary package name. The package itself or any of its
// parent packages may be a rename key. A rename that maps a package to
// itself shields it from a shorter key and reports no change.
func (r *PackageRenames) Package(pkg string) (string, bool) {
	from, to, ok := r.lookup(pkg)
	if !ok {
		return pkg, false
	}
	renamed := to + pkg[len(from):]
	return renamed, renamed != pkg
}

// ClassName renames the package portion of a binary class name such as
// "javax/inject/Inject". Names in the default package are never renamed.
func (r *PackageRenames) ClassName(name string) (string, bool) {
	slash := strings.LastIndexByte(name, '/')
	if slash <= 0 {
		return name, false
	}
	pkg, renamed := r.Package(name[:slash])
	if !renamed {
		return name, false
	}
	return pkg + name[slash:], true
}

// DottedClassName renames a class name in Java source form such as
// "javax.inject.Inject".
func (r *PackageRenames) DottedClassName(name string) (string, bool) {
	if strings.IndexByte(name, '/') >= 0 {
		return name, false
	}
	renamed, ok := r.ClassName(ToBinary(name))
	if !ok {
		return name, false
	}
	return ToDotted(renamed), true
}

// packageSegmenter segments binary names by slash separators. For example,
// "a/b/c" -> ("a", 1), ("/b", 3), ("/c", -1) in successive calls.
func packageSegmenter(path string, start int) (segment string, next int) {
	if len(path) == 0 || start < 0 || start > len(path)-1 {
		return "", -1
	}
	end := strings.IndexByte(path[start+1:], '/')
	if end == -1 {
		return path[start:], -1
	}
	return path[start : start+end+1], start + end + 1
}

// ToBinary converts a dotted name to binary form.
func ToBinary(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// ToDotted converts a binary name to dotted form.
func ToDotted(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}
