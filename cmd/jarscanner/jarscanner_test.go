package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/bazelbuild/bazel-gazelle/testtools"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/stackb/jvm-transformer/pkg/testutil"
)

func TestScan(t *testing.T) {
	dir, files := testutil.MustPrepareTestFiles(t, []testtools.FileSpec{
		{Path: "rules.properties", Content: "PACKAGE_RENAME=javax.inject=jakarta.inject"},
	})
	jar := filepath.Join(dir, "inject.jar")

	inject := testutil.NewClassBuilder("javax/inject/Inject", "java/lang/Object")
	inject.StringConstant("javax.inject.Named")
	synthetic := testutil.NewClassBuilder("com/example/Impl$1", "javax/inject/Base").Access(0x1000)
	testutil.MustWriteZip(t, jar,
		testutil.ZipEntry{Name: "META-INF/MANIFEST.MF", Data: []byte("Manifest-Version: 1.0\n")},
		testutil.ZipEntry{Name: "javax/inject/Inject.class", Data: inject.Bytes()},
		testutil.ZipEntry{Name: "com/example/Impl.class", Data: testutil.NewClassBuilder("com/example/Impl", "java/lang/Object").Bytes()},
		testutil.ZipEntry{Name: "com/example/Impl$1.class", Data: synthetic.Bytes()},
	)

	out, err := run(context.Background(), &config{rulesRef: files[0]}, []string{jar}, testutil.NewTestLogger(t))
	require.NoError(t, err)

	want := &Output{
		Rules: files[0],
		Jars: []*JarReport{{
			Jar:     jar,
			Classes: 2,
			Changed: []*ClassReport{{
				Name:      "javax.inject.Inject",
				RenamedTo: "jakarta.inject.Inject",
				Rewrites:  2,
				Constants: []string{"javax.inject.Named -> jakarta.inject.Named"},
			}},
		}},
	}
	if diff := cmp.Diff(want, out, cmpopts.IgnoreFields(JarReport{}, "Sha256")); diff != "" {
		t.Errorf("scan (-want +got):\n%s", diff)
	}
	require.Len(t, out.Jars[0].Sha256, 64)
}

func TestCommandWritesJSON(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "empty.jar")
	output := filepath.Join(dir, "report.json")
	testutil.MustWriteZip(t, jar, testutil.ZipEntry{Name: "a.txt", Data: []byte("a")})

	cmd := newRootCmd()
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"-o", output, jar})
	require.NoError(t, cmd.Execute(), stderr.String())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var got Output
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got.Jars, 1)
	require.Equal(t, "jakarta-rules.properties", got.Rules)
	require.Equal(t, 0, got.Jars[0].Classes)
}

func TestCommandRequiresJar(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)
	require.Error(t, cmd.Execute())
}
