package action

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/stackb/jvm-transformer/pkg/errors"
	"github.com/stackb/jvm-transformer/pkg/java"
	"github.com/stackb/jvm-transformer/pkg/rename"
	"github.com/stackb/jvm-transformer/pkg/testutil"
)

var injectRenames = map[string]string{"javax.inject": "jakarta.inject"}

func testOptions(t *testing.T, renames map[string]string) Options {
	return Options{
		Renames: rename.MustNew(renames),
		Logger:  testutil.NewTestLogger(t),
	}
}

// injectClass is javax/inject/Inject referencing javax/inject/Qualifier.
func injectClass() []byte {
	b := testutil.NewClassBuilder("javax/inject/Inject", "java/lang/Object", "java/lang/annotation/Annotation")
	b.StringConstant("javax.inject.Qualifier")
	b.Methodref("javax/inject/Qualifier", "value", "()Ljavax/inject/Qualifier;")
	b.Field(0x0002, "qualifier", "Ljavax/inject/Qualifier;",
		b.Signature("Ljava/util/List<Ljavax/inject/Qualifier;>;"))
	b.Field(0x0002, "count", "I")
	b.Method(0x0001, "<init>", "()V", b.Code(
		b.LocalVariableTable(testutil.LocalVariable{Name: "this", Type: "Ljavax/inject/Inject;"}),
	))
	b.Attribute(
		b.SourceFile("Inject.java"),
		b.RuntimeVisibleAnnotations(b.Annotation("Ljavax/inject/Qualifier;")),
	)
	return b.Bytes()
}

// implClass is com/example/Impl with no renameable references.
func implClass() []byte {
	b := testutil.NewClassBuilder("com/example/Impl", "java/lang/Object")
	b.StringConstant("hello")
	b.Method(0x0001, "<init>", "()V", b.Code())
	return b.Bytes()
}

func utf8Values(t *testing.T, data []byte) []string {
	t.Helper()
	cf, err := java.Parse(data)
	require.NoError(t, err)
	var values []string
	for _, c := range cf.ConstantPool {
		if c.Kind == java.ConstantKindUtf8 {
			values = append(values, c.Value)
		}
	}
	return values
}

func TestClassActionAccepts(t *testing.T) {
	a := NewClassAction(testOptions(t, injectRenames))
	assert.True(t, a.Accepts("javax/inject/Inject.class"))
	assert.True(t, a.Accepts("WEB-INF/classes/a/B.class"))
	assert.False(t, a.Accepts("javax/inject/Inject.java"))
	assert.False(t, a.Accepts("META-INF/MANIFEST.MF"))
	assert.Equal(t, ClassActionName, a.Name())
	_, ok := a.Handler().(BufferedFunc)
	assert.True(t, ok, "class action should be buffered")
}

func TestClassActionInject(t *testing.T) {
	capture := testutil.NewLogCapture()
	a := NewClassAction(Options{Renames: rename.MustNew(injectRenames), Logger: capture.Logger()})

	out, changes, err := a.Apply("javax/inject/Inject.class", injectClass())
	require.NoError(t, err)
	require.True(t, changes.HasChanges())

	cf, err := java.Parse(out)
	require.NoError(t, err, "output should parse")
	assert.Equal(t, "jakarta/inject/Inject", cf.Name())
	assert.Equal(t, "jakarta/inject/Inject.class", changes.OutputResource)

	for _, v := range utf8Values(t, out) {
		assert.NotContains(t, v, "javax/inject", "constant %q", v)
		assert.NotContains(t, v, "javax.inject", "constant %q", v)
	}

	want := &ClassChanges{
		InputClassName:  "javax.inject.Inject",
		OutputClassName: "jakarta.inject.Inject",
		InputSuperName:  "java.lang.Object",
		OutputSuperName: "java.lang.Object",
		ModifiedFields: []MemberChange{
			{
				Name:       "qualifier",
				Descriptor: Rename{From: "Ljavax/inject/Qualifier;", To: "Ljakarta/inject/Qualifier;"},
				Signature: Rename{
					From: "Ljava/util/List<Ljavax/inject/Qualifier;>;",
					To:   "Ljava/util/List<Ljakarta/inject/Qualifier;>;",
				},
			},
		},
		ModifiedConstants: []Rename{
			{From: "javax.inject.Qualifier", To: "jakarta.inject.Qualifier"},
		},
		// every Utf8 constant mentioning javax/inject or javax.inject
		RewrittenEntries: 7,
	}
	if diff := cmp.Diff(want, changes.Class); diff != "" {
		t.Errorf("ClassChanges (-want +got):\n%s", diff)
	}
	assert.Contains(t, capture.String(), "Class name [ javax.inject.Inject ] -> [ jakarta.inject.Inject ]")
}

func TestClassActionLogsRenameAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	a := NewClassAction(Options{Renames: rename.MustNew(injectRenames), Logger: logger})

	_, _, err := a.Apply("javax/inject/Inject.class", injectClass())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"level":"info"`)
	assert.Contains(t, buf.String(), "Class name [ javax.inject.Inject ] -> [ jakarta.inject.Inject ]")
	assert.NotContains(t, buf.String(), "Class changed", "per class detail stays at debug")
}

func TestClassActionUnchanged(t *testing.T) {
	a := NewClassAction(testOptions(t, injectRenames))
	in := implClass()
	out, changes, err := a.Apply("com/example/Impl.class", in)
	require.NoError(t, err)
	assert.False(t, changes.HasChanges())
	assert.Equal(t, "com/example/Impl.class", changes.OutputResource)
	assert.True(t, bytes.Equal(in, out), "unchanged class should be byte-identical")
}

func TestClassActionIdempotent(t *testing.T) {
	a := NewClassAction(testOptions(t, injectRenames))
	once, _, err := a.Apply("javax/inject/Inject.class", injectClass())
	require.NoError(t, err)
	twice, changes, err := a.Apply("jakarta/inject/Inject.class", once)
	require.NoError(t, err)
	assert.False(t, changes.HasChanges())
	assert.True(t, bytes.Equal(once, twice), "second transform should not change the class")
}

func TestClassActionInvertible(t *testing.T) {
	forward := rename.MustNew(injectRenames)
	inverse, err := forward.Invert()
	require.NoError(t, err)

	in := injectClass()
	out, _, err := NewClassAction(Options{Renames: forward, Logger: testutil.NewTestLogger(t)}).Apply("javax/inject/Inject.class", in)
	require.NoError(t, err)
	back, changes, err := NewClassAction(Options{Renames: inverse, Logger: testutil.NewTestLogger(t)}).Apply("jakarta/inject/Inject.class", out)
	require.NoError(t, err)
	assert.Equal(t, "javax/inject/Inject.class", changes.OutputResource)
	assert.True(t, bytes.Equal(in, back), "inverse transform should restore the class")
}

func TestClassActionResourceName(t *testing.T) {
	for name, tc := range map[string]struct {
		resource string
		want     string
	}{
		"plain": {
			resource: "javax/inject/Inject.class",
			want:     "jakarta/inject/Inject.class",
		},
		"web module": {
			resource: "WEB-INF/classes/javax/inject/Inject.class",
			want:     "WEB-INF/classes/jakarta/inject/Inject.class",
		},
		"multi release": {
			resource: "META-INF/versions/11/javax/inject/Inject.class",
			want:     "META-INF/versions/11/jakarta/inject/Inject.class",
		},
		"name does not match class": {
			resource: "misplaced/Inject.class",
			want:     "misplaced/Inject.class",
		},
	} {
		t.Run(name, func(t *testing.T) {
			a := NewClassAction(testOptions(t, injectRenames))
			_, changes, err := a.Apply(tc.resource, injectClass())
			require.NoError(t, err)
			assert.Equal(t, tc.want, changes.OutputResource)
		})
	}
}

func TestClassActionRoles(t *testing.T) {
	b := testutil.NewClassBuilder("com/example/Service", "javax/inject/Base", "javax/inject/Provider")
	b.Package("javax/inject")
	b.MethodType("(Ljavax/inject/Named;)V")
	b.Class("[Ljavax/inject/Named;")
	// a member name that looks like a package is not renamed
	b.Field(0x0002, "javax.inject.Named", "I")
	b.Method(0x0001, "get", "()Ljava/lang/Object;",
		b.Signature("()Ljavax/inject/Provider<Ljava/lang/String;>;"),
		b.Code(b.LocalVariableTypeTable(testutil.LocalVariable{Name: "p", Type: "Ljavax/inject/Provider<TT;>;"})),
		b.AnnotationDefault(b.EnumValue("Ljavax/inject/Mode;", "ON")),
	)
	b.Attribute(b.RuntimeVisibleAnnotations(b.Annotation("Ljava/lang/Deprecated;",
		b.Pair("since", b.StringValue("javax.inject 1")),
		b.Pair("type", b.ClassValue("Ljavax/inject/Named;")),
	)))

	a := NewClassAction(testOptions(t, injectRenames))
	out, changes, err := a.Apply("com/example/Service.class", b.Bytes())
	require.NoError(t, err)

	got := utf8Values(t, out)
	for _, want := range []string{
		"com/example/Service",
		"jakarta/inject/Base",
		"jakarta/inject/Provider",
		"jakarta/inject",
		"(Ljakarta/inject/Named;)V",
		"[Ljakarta/inject/Named;",
		"javax.inject.Named",
		"()Ljakarta/inject/Provider<Ljava/lang/String;>;",
		"Ljakarta/inject/Provider<TT;>;",
		"Ljakarta/inject/Mode;",
		"jakarta.inject 1",
		"Ljakarta/inject/Named;",
	} {
		assert.Contains(t, got, want)
	}

	assert.Equal(t, "javax.inject.Base", changes.Class.InputSuperName)
	assert.Equal(t, "jakarta.inject.Base", changes.Class.OutputSuperName)
	assert.Equal(t, []Rename{{From: "javax.inject.Provider", To: "jakarta.inject.Provider"}}, changes.Class.ModifiedInterfaces)
	require.Len(t, changes.Class.ModifiedMethods, 1)
	assert.Equal(t, "get", changes.Class.ModifiedMethods[0].Name)
	assert.Empty(t, changes.Class.ModifiedFields)
	assert.False(t, changes.Class.HasClassNameChange())
	assert.Equal(t, "com/example/Service.class", changes.OutputResource)
}

func TestClassActionMalformed(t *testing.T) {
	a := NewClassAction(testOptions(t, injectRenames))
	for name, data := range map[string][]byte{
		"empty":     nil,
		"not class": []byte("PK\x03\x04"),
		"truncated": injectClass()[:40],
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := a.Apply("a/B.class", data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, terrors.ErrMalformedInput), "got %v", err)
		})
	}
}

func TestProperty_ClassRenameIsInvertible(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("transforming with the inverse renames restores the class", prop.ForAll(
		func(pkg, class string) bool {
			name := "javax/inject/" + pkg + "/" + class
			b := testutil.NewClassBuilder(name, "javax/inject/Base")
			b.Field(0x0002, "f", "Ljavax/inject/"+pkg+"/Other;")
			b.StringConstant("javax.inject." + pkg)
			in := b.Bytes()

			forward := rename.MustNew(injectRenames)
			inverse, err := forward.Invert()
			if err != nil {
				return false
			}
			out, _, err := NewClassAction(Options{Renames: forward}).Apply(name+".class", in)
			if err != nil {
				return false
			}
			back, _, err := NewClassAction(Options{Renames: inverse}).Apply(name+".class", out)
			return err == nil && bytes.Equal(in, back)
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
