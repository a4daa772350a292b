package rules

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/bazelbuild/bazel-gazelle/testtools"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/stackb/jvm-transformer/pkg/errors"
	"github.com/stackb/jvm-transformer/pkg/testutil"
)

func TestParseProperties(t *testing.T) {
	for name, tc := range map[string]struct {
		input string
		want  map[string]string
	}{
		"separators": {
			input: "a=1\nb:2\nc 3\nd = 4\n",
			want:  map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"},
		},
		"comments": {
			input: "# a=1\n! b=2\n   # c=3\n\nd=4",
			want:  map[string]string{"d": "4"},
		},
		"continuation": {
			input: "a=one,\\\n    two,\\\n    three\nb=x",
			want:  map[string]string{"a": "one,two,three", "b": "x"},
		},
		"escaped backslash is not a continuation": {
			input: "a=x\\\\\nb=y",
			want:  map[string]string{"a": `x\`, "b": "y"},
		},
		"escapes": {
			input: "a\\=b=c\\td\nu=\\u0041",
			want:  map[string]string{"a=b": "c\td", "u": "A"},
		},
		"empty value": {
			input: "a=\n",
			want:  map[string]string{"a": ""},
		},
		"later wins": {
			input: "a=1\na=2",
			want:  map[string]string{"a": "2"},
		},
		"continuation at end of input": {
			input: "a=1,\\",
			want:  map[string]string{"a": "1,"},
		},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := parseProperties([]byte(tc.input))
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("parseProperties (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParsePropertiesErrors(t *testing.T) {
	for name, input := range map[string]string{
		"missing key":   "=value",
		"short unicode": "a=\\u00",
		"bad unicode":   "a=\\uzzzz",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseProperties([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestParse(t *testing.T) {
	for name, tc := range map[string]struct {
		source string
		input  string
		want   *RuleSet
	}{
		"properties": {
			source: "rules.properties",
			input: `RESOURCE_SELECTION=*.class; META-INF/**,!test/**
PACKAGE_RENAME=javax.inject=jakarta.inject,\
  javax.el=jakarta.el
`,
			want: &RuleSet{
				Source:   "rules.properties",
				Includes: []string{"*.class", "META-INF/**"},
				Excludes: []string{"test/**"},
				Renames:  map[string]string{"javax.inject": "jakarta.inject", "javax.el": "jakarta.el"},
			},
		},
		"no selection": {
			source: "rules.properties",
			input:  "PACKAGE_RENAME=javax.inject=jakarta.inject",
			want: &RuleSet{
				Source:  "rules.properties",
				Renames: map[string]string{"javax.inject": "jakarta.inject"},
			},
		},
		"yaml": {
			source: "rules.yaml",
			input: `selection:
  include: ["**/*.class"]
  exclude: ["test/"]
renames:
  javax.inject: jakarta.inject
`,
			want: &RuleSet{
				Source:   "rules.yaml",
				Includes: []string{"**/*.class"},
				Excludes: []string{"test/"},
				Renames:  map[string]string{"javax.inject": "jakarta.inject"},
			},
		},
		"yml url": {
			source: "https://example.com/rules.yml?ref=main",
			input:  "renames: {javax.el: jakarta.el}",
			want: &RuleSet{
				Source:  "https://example.com/rules.yml?ref=main",
				Renames: map[string]string{"javax.el": "jakarta.el"},
			},
		},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(tc.source, []byte(tc.input))
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Parse (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		source string
		input  string
	}{
		"rename without target": {source: "r.properties", input: "PACKAGE_RENAME=javax.inject"},
		"conflicting renames":   {source: "r.properties", input: "PACKAGE_RENAME=javax.el=jakarta.el,javax.el=other.el"},
		"bad pattern":           {source: "r.properties", input: "RESOURCE_SELECTION=[a"},
		"bad yaml":              {source: "r.yaml", input: "renames: [a"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tc.source, []byte(tc.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, terrors.ErrRules), "got %v", err)
		})
	}
}

func TestLoadDefault(t *testing.T) {
	rs, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultRulesReference, rs.Source)
	assert.Equal(t, []string{"*"}, rs.Includes)
	assert.Equal(t, "jakarta.servlet", rs.Renames["javax.servlet"])
	assert.Equal(t, "javax.transaction.xa", rs.Renames["javax.transaction.xa"])

	renames, err := rs.PackageRenames()
	require.NoError(t, err)
	got, ok := renames.ClassName("javax/transaction/xa/XAResource")
	assert.False(t, ok, "jdk package should be shielded")
	assert.Equal(t, "javax/transaction/xa/XAResource", got)
	got, ok = renames.ClassName("javax/servlet/http/HttpServlet")
	assert.True(t, ok)
	assert.Equal(t, "jakarta/servlet/http/HttpServlet", got)

	inverted, err := rs.Invert()
	require.NoError(t, err)
	assert.Equal(t, "javax.servlet", inverted.Renames["jakarta.servlet"])
}

func TestLoadFile(t *testing.T) {
	dir, files := testutil.MustPrepareTestFiles(t, []testtools.FileSpec{
		{Path: "rules.properties", Content: "PACKAGE_RENAME=javax.inject=jakarta.inject"},
		{Path: "rules.yaml", Content: "renames: {javax.el: jakarta.el}"},
	})

	rs, err := Load(context.Background(), files[0])
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"javax.inject": "jakarta.inject"}, rs.Renames)

	rs, err = Load(context.Background(), "file://"+filepath.ToSlash(files[1]))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"javax.el": "jakarta.el"}, rs.Renames)

	_, err = Load(context.Background(), filepath.Join(dir, "missing.properties"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, terrors.ErrRules), "got %v", err)
}

func TestLoadHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rules.properties":
			w.Write([]byte("PACKAGE_RENAME=javax.json=jakarta.json"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	loader := NewLoader(srv.Client())
	rs, err := loader.Load(context.Background(), srv.URL+"/rules.properties")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"javax.json": "jakarta.json"}, rs.Renames)

	_, err = loader.Load(context.Background(), srv.URL+"/missing.properties")
	require.Error(t, err)
	assert.True(t, errors.Is(err, terrors.ErrRules), "got %v", err)
}

func TestInvertConflict(t *testing.T) {
	rs := &RuleSet{Source: "r", Renames: map[string]string{"a.x": "b.x", "c.x": "b.x"}}
	_, err := rs.Invert()
	require.Error(t, err)
	assert.True(t, errors.Is(err, terrors.ErrRules))
}

func TestRuleSetString(t *testing.T) {
	rs := &RuleSet{
		Source:   "r.properties",
		Includes: []string{"*"},
		Renames:  map[string]string{"javax.el": "jakarta.el", "javax.annotation": "jakarta.annotation"},
	}
	want := `Rules [ r.properties ]
Includes [ * ]
Excludes [  ]
Rename [ javax.annotation ] -> [ jakarta.annotation ]
Rename [ javax.el ] -> [ jakarta.el ]
`
	if diff := cmp.Diff(want, rs.String()); diff != "" {
		t.Errorf("String (-want +got):\n%s", diff)
	}
}
