package java

import (
	"archive/zip"
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/stackb/jvm-transformer/pkg/errors"
	"github.com/stackb/jvm-transformer/pkg/testutil"
)

func injectClass() *testutil.ClassBuilder {
	b := testutil.NewClassBuilder("javax/inject/Inject", "java/lang/Object", "java/lang/annotation/Annotation")
	b.StringConstant("javax.inject.Qualifier")
	b.Long(42)
	b.Double(1.5)
	b.Methodref("java/lang/Object", "<init>", "()V")
	b.MethodType("(Ljavax/inject/Qualifier;)V")
	b.Integer(7)
	b.Fieldref("javax/inject/Inject", "qualifier", "Ljavax/inject/Qualifier;")
	b.InvokeDynamic(0, "get", "()Ljavax/inject/Provider;")
	b.MethodHandle("javax/inject/Inject", "create", "()Ljavax/inject/Inject;")
	b.Field(0x0002, "qualifier", "Ljavax/inject/Qualifier;", b.Signature("Ljava/util/List<Ljavax/inject/Named;>;"))
	b.Method(0x0001, "<init>", "()V", b.Code(
		b.LocalVariableTable(testutil.LocalVariable{Name: "this", Type: "Ljavax/inject/Inject;"}),
	))
	b.Attribute(
		b.SourceFile("Inject.java"),
		b.RuntimeVisibleAnnotations(b.Annotation("Ljava/lang/annotation/Retention;",
			b.Pair("value", b.EnumValue("Ljava/lang/annotation/RetentionPolicy;", "RUNTIME")))),
	)
	return b
}

func TestParse(t *testing.T) {
	cf, err := Parse(injectClass().Bytes())
	require.NoError(t, err)

	assert.Equal(t, uint16(61), cf.MajorVersion)
	assert.Equal(t, "javax/inject/Inject", cf.Name())
	assert.Equal(t, "java/lang/Object", cf.SuperName())
	assert.Equal(t, []string{"java/lang/annotation/Annotation"}, cf.InterfaceNames())
	require.Len(t, cf.Fields, 1)
	desc, err := cf.Utf8(cf.Fields[0].DescriptorIndex)
	require.NoError(t, err)
	assert.Equal(t, "Ljavax/inject/Qualifier;", desc)
	require.Len(t, cf.Methods, 1)
	require.Len(t, cf.Attributes, 2)
	assert.Equal(t, "SourceFile", cf.AttributeName(cf.Attributes[0]))
	assert.False(t, cf.IsSynthetic())

	var longs int
	for i, c := range cf.ConstantPool {
		if c.Kind == ConstantKindLong || c.Kind == ConstantKindDouble {
			longs++
			assert.Equal(t, ConstantKindPlaceholder, cf.ConstantPool[i+1].Kind, "slot after %v", c.Kind)
		}
	}
	assert.Equal(t, 2, longs)
}

func TestBytesRoundTrip(t *testing.T) {
	for name, data := range map[string][]byte{
		"inject":  injectClass().Bytes(),
		"minimal": testutil.NewClassBuilder("module-info", "").Access(0x8000).Bytes(),
	} {
		t.Run(name, func(t *testing.T) {
			cf, err := Parse(data)
			require.NoError(t, err)
			got, err := cf.Bytes()
			require.NoError(t, err)
			if !bytes.Equal(data, got) {
				t.Errorf("re-encoded class differs:\n%s", cmp.Diff(data, got))
			}
		})
	}
}

func TestBytesRecomputesLengths(t *testing.T) {
	cf, err := Parse(injectClass().Bytes())
	require.NoError(t, err)
	for i := range cf.ConstantPool {
		c := &cf.ConstantPool[i]
		if c.Kind == ConstantKindUtf8 && c.Value == "javax/inject/Inject" {
			c.Value = "jakarta/inject/Inject"
		}
	}
	data, err := cf.Bytes()
	require.NoError(t, err)
	reparsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "jakarta/inject/Inject", reparsed.Name())
}

func TestBytesUtf8TooLong(t *testing.T) {
	cf, err := Parse(injectClass().Bytes())
	require.NoError(t, err)
	for i := range cf.ConstantPool {
		if cf.ConstantPool[i].Kind == ConstantKindUtf8 {
			cf.ConstantPool[i].Value = string(make([]byte, MaxUtf8Length+1))
			break
		}
	}
	_, err = cf.Bytes()
	assert.ErrorContains(t, err, "byte limit")
}

func TestParseMalformed(t *testing.T) {
	valid := injectClass().Bytes()
	badIndex := testutil.NewClassBuilder("a/B", "java/lang/Object").Bytes()
	// this_class is the second field after the constant pool
	badIndex[len(badIndex)-12] = 0x7f

	for name, tc := range map[string]struct {
		data []byte
		want string
	}{
		"empty": {
			data: nil,
			want: "truncated",
		},
		"bad magic": {
			data: append([]byte{0xca, 0xfe, 0xd0, 0x0d}, valid[4:]...),
			want: "bad magic",
		},
		"truncated pool": {
			data: valid[:20],
			want: "truncated",
		},
		"trailing bytes": {
			data: append(append([]byte(nil), valid...), 0),
			want: "trailing bytes",
		},
		"this_class out of range": {
			data: badIndex,
			want: "this_class",
		},
		"invalid tag": {
			data: []byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 61, 0, 2, 99},
			want: "invalid constant pool tag 99",
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tc.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, terrors.ErrMalformedInput), "want ErrMalformedInput, got %v", err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRoles(t *testing.T) {
	b := testutil.NewClassBuilder("javax/inject/Inject", "java/lang/Object")
	b.StringConstant("javax.inject.Qualifier")
	b.Class("[Ljavax/inject/Named;")
	b.Package("javax/inject")
	b.MethodType("(Ljavax/inject/Qualifier;)V")
	// the class name is also a string constant; the class role wins
	b.StringConstant("javax/inject/Inject")
	b.Field(0x0002, "named", "Ljavax/inject/Named;",
		b.Signature("Ljava/util/List<Ljavax/inject/Named;>;"),
		b.RuntimeVisibleTypeAnnotations(b.Annotation("Ljavax/inject/TypeUse;")),
	)
	b.Method(0x0001, "get", "(I)V",
		b.Code(b.LocalVariableTypeTable(testutil.LocalVariable{Name: "list", Type: "Ljava/util/List<TT;>;"})),
		b.RuntimeVisibleParameterAnnotations([][]byte{b.Annotation("Ljavax/inject/Param;")}),
		b.AnnotationDefault(b.ArrayValue(b.ClassValue("Ljavax/inject/Default;"), b.StringValue("javax.inject.Value"))),
	)
	b.Attribute(b.RuntimeVisibleAnnotations(b.Annotation("Ljavax/inject/Qualifier;",
		b.Pair("nested", b.AnnotationValue(b.Annotation("Ljavax/inject/Nested;",
			b.Pair("mode", b.EnumValue("Ljavax/inject/Mode;", "ON"))))),
		b.Pair("count", b.IntValue(3)),
	)))

	cf, err := Parse(b.Bytes())
	require.NoError(t, err)
	roles, err := cf.Roles()
	require.NoError(t, err)

	got := make(map[string]Role)
	for index, role := range roles {
		value, err := cf.Utf8(index)
		require.NoError(t, err)
		got[value] = role
	}
	want := map[string]Role{
		"javax/inject/Inject":                    RoleClass,
		"java/lang/Object":                       RoleClass,
		"javax.inject.Qualifier":                 RoleString,
		"[Ljavax/inject/Named;":                  RoleDescriptor,
		"javax/inject":                           RolePackage,
		"(Ljavax/inject/Qualifier;)V":            RoleDescriptor,
		"Ljavax/inject/Named;":                   RoleDescriptor,
		"Ljava/util/List<Ljavax/inject/Named;>;": RoleSignature,
		"Ljavax/inject/TypeUse;":                 RoleDescriptor,
		"(I)V":                                   RoleDescriptor,
		"Ljava/util/List<TT;>;":                  RoleSignature,
		"Ljavax/inject/Param;":                   RoleDescriptor,
		"Ljavax/inject/Default;":                 RoleDescriptor,
		"javax.inject.Value":                     RoleString,
		"Ljavax/inject/Qualifier;":               RoleDescriptor,
		"Ljavax/inject/Nested;":                  RoleDescriptor,
		"Ljavax/inject/Mode;":                    RoleDescriptor,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Roles (-want +got):\n%s", diff)
	}
}

func TestRolesMalformedAttribute(t *testing.T) {
	b := testutil.NewClassBuilder("a/B", "java/lang/Object")
	b.Attribute(b.Attr("RuntimeVisibleAnnotations", []byte{0, 1, 0}))
	cf, err := Parse(b.Bytes())
	require.NoError(t, err)
	_, err = cf.Roles()
	require.Error(t, err)
	assert.True(t, errors.Is(err, terrors.ErrMalformedInput))
}

func TestJarVisit(t *testing.T) {
	dir, _ := testutil.MustPrepareTestFiles(t, nil)
	filename := filepath.Join(dir, "inject.jar")
	testutil.MustWriteZip(t, filename,
		testutil.ZipEntry{Name: "META-INF/MANIFEST.MF", Data: []byte("Manifest-Version: 1.0\n")},
		testutil.ZipEntry{Name: "javax/inject/Inject.class", Data: injectClass().Bytes()},
		testutil.ZipEntry{Name: "javax/inject/Named.class", Data: testutil.NewClassBuilder("javax/inject/Named", "java/lang/Object").Bytes(), Stored: true},
	)

	var names []string
	err := NewJar(filename).Visit(func(f *zip.File, class *ClassFile, bytecode []byte) error {
		names = append(names, f.Name+"="+class.Name())
		want, err := class.Bytes()
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want, bytecode), "%s: bytecode should be the entry contents", f.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"javax/inject/Inject.class=javax/inject/Inject",
		"javax/inject/Named.class=javax/inject/Named",
	}, names)
}
