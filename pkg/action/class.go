package action

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stackb/jvm-transformer/pkg/java"
	"github.com/stackb/jvm-transformer/pkg/rename"
)

// ClassActionName is the name of the class action.
const ClassActionName = "Class Action"

// ClassAction renames packages in class files. Every Utf8 constant is
// interpreted by the way it is referenced and renamed accordingly; the
// structure of the class file is otherwise left untouched.
type ClassAction struct {
	renames *rename.PackageRenames
	logger  zerolog.Logger
}

// NewClassAction creates a ClassAction.
func NewClassAction(opts Options) *ClassAction {
	return &ClassAction{
		renames: opts.Renames,
		logger:  opts.Logger.With().Str("action", ClassActionName).Logger(),
	}
}

// Name implements Action.
func (a *ClassAction) Name() string {
	return ClassActionName
}

// Accepts implements Action.
func (a *ClassAction) Accepts(resourceName string) bool {
	return strings.HasSuffix(resourceName, java.ClassFileSuffix)
}

// Handler implements Action.
func (a *ClassAction) Handler() Handler {
	return BufferedFunc(a.Apply)
}

// Apply transforms a class file. When nothing is renamed the input bytes are
// returned as is.
func (a *ClassAction) Apply(name string, data []byte) ([]byte, *Changes, error) {
	cf, err := java.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	roles, err := cf.Roles()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}

	before := snapshot(cf)
	class := &ClassChanges{}
	for index := range cf.ConstantPool {
		role, ok := roles[uint16(index)]
		if !ok {
			continue
		}
		c := &cf.ConstantPool[index]
		value, changed := a.renameUtf8(c.Value, role)
		if !changed {
			continue
		}
		if role == java.RoleString {
			class.ModifiedConstants = append(class.ModifiedConstants, Rename{From: c.Value, To: value})
		}
		c.Value = value
		class.RewrittenEntries++
	}
	after := snapshot(cf)
	before.diff(after, class)

	changes := &Changes{
		Action:         ClassActionName,
		InputResource:  name,
		OutputResource: name,
		Class:          class,
	}
	if !class.HasChanges() {
		a.logger.Debug().Str("resource", name).Msg("Class unchanged")
		return data, changes, nil
	}

	out, err := cf.Bytes()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	if class.HasClassNameChange() {
		changes.OutputResource = classResourceName(name, before.name, after.name)
		a.logger.Info().Msgf("Class name [ %s ] -> [ %s ]", class.InputClassName, class.OutputClassName)
	}
	a.logger.Debug().
		Str("resource", name).
		Int("constants", class.RewrittenEntries).
		Msg("Class changed")
	return out, changes, nil
}

func (a *ClassAction) renameUtf8(value string, role java.Role) (string, bool) {
	switch role {
	case java.RoleClass:
		return a.renames.ClassName(value)
	case java.RoleDescriptor:
		return a.renames.Descriptor(value)
	case java.RoleSignature:
		return a.renames.Signature(value)
	case java.RolePackage:
		return a.renames.Package(value)
	case java.RoleString:
		return a.renames.Constant(value)
	}
	return value, false
}

// classResourceName renames the trailing "<class>.class" of an entry name,
// keeping prefixes such as WEB-INF/classes/ or META-INF/versions/11/.
func classResourceName(resourceName, from, to string) string {
	suffix := from + java.ClassFileSuffix
	if !strings.HasSuffix(resourceName, suffix) {
		return resourceName
	}
	return strings.TrimSuffix(resourceName, suffix) + to + java.ClassFileSuffix
}

// classNames captures the names a ClassChanges reports on.
type classNames struct {
	name       string
	super      string
	interfaces []string
	fields     []memberNames
	methods    []memberNames
}

type memberNames struct {
	name       string
	descriptor string
	signature  string
}

func snapshot(cf *java.ClassFile) classNames {
	return classNames{
		name:       cf.Name(),
		super:      cf.SuperName(),
		interfaces: cf.InterfaceNames(),
		fields:     members(cf, cf.Fields),
		methods:    members(cf, cf.Methods),
	}
}

func members(cf *java.ClassFile, ms []java.Member) []memberNames {
	names := make([]memberNames, len(ms))
	for i, m := range ms {
		names[i].name, _ = cf.Utf8(m.NameIndex)
		names[i].descriptor, _ = cf.Utf8(m.DescriptorIndex)
		for _, attr := range m.Attributes {
			if cf.AttributeName(attr) == "Signature" && len(attr.Info) == 2 {
				names[i].signature, _ = cf.Utf8(binary.BigEndian.Uint16(attr.Info))
			}
		}
	}
	return names
}

func (b classNames) diff(a classNames, c *ClassChanges) {
	c.InputClassName = rename.ToDotted(b.name)
	c.OutputClassName = rename.ToDotted(a.name)
	c.InputSuperName = rename.ToDotted(b.super)
	c.OutputSuperName = rename.ToDotted(a.super)
	for i := range b.interfaces {
		if b.interfaces[i] != a.interfaces[i] {
			c.ModifiedInterfaces = append(c.ModifiedInterfaces, Rename{
				From: rename.ToDotted(b.interfaces[i]),
				To:   rename.ToDotted(a.interfaces[i]),
			})
		}
	}
	c.ModifiedFields = diffMembers(b.fields, a.fields)
	c.ModifiedMethods = diffMembers(b.methods, a.methods)
}

func diffMembers(before, after []memberNames) []MemberChange {
	var changes []MemberChange
	for i := range before {
		b, a := before[i], after[i]
		if b.descriptor == a.descriptor && b.signature == a.signature {
			continue
		}
		change := MemberChange{
			Name:       b.name,
			Descriptor: Rename{From: b.descriptor, To: a.descriptor},
		}
		if b.signature != "" {
			change.Signature = Rename{From: b.signature, To: a.signature}
		}
		changes = append(changes, change)
	}
	return changes
}
