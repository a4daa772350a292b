// Package rules loads the transformation rules: which resources to select
// and which packages to rename.
package rules

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	terrors "github.com/stackb/jvm-transformer/pkg/errors"
	"github.com/stackb/jvm-transformer/pkg/rename"
	"github.com/stackb/jvm-transformer/pkg/selection"
)

// Property names of a rules properties file.
const (
	ResourceSelectionProperty = "RESOURCE_SELECTION"
	PackageRenameProperty     = "PACKAGE_RENAME"
)

// DefaultRulesReference names the bundled rules, used when no reference is
// given.
const DefaultRulesReference = "jakarta-rules.properties"

// maxRulesSize bounds the size of a downloaded rules file.
const maxRulesSize = 4 * 1024 * 1024

//go:embed jakarta-rules.properties
var defaultRules []byte

// RuleSet is a loaded set of transformation rules.
type RuleSet struct {
	// Source is where the rules were loaded from.
	Source   string
	Includes []string
	Excludes []string
	Renames  map[string]string
}

// yamlRules is the YAML form of a rules file.
type yamlRules struct {
	Selection struct {
		Include []string `yaml:"include"`
		Exclude []string `yaml:"exclude"`
	} `yaml:"selection"`
	Renames map[string]string `yaml:"renames"`
}

// Loader loads rule sets.
type Loader struct {
	httpClient *http.Client
}

// NewLoader creates a Loader. A nil client selects a client with a 30
// second timeout.
func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{httpClient: client}
}

// Load loads rules with a default Loader.
func Load(ctx context.Context, ref string) (*RuleSet, error) {
	return NewLoader(nil).Load(ctx, ref)
}

// Load reads the rules named by ref: a file path, a file:// URL or an
// http(s):// URL. Files ending in .yaml or .yml are parsed as YAML and
// anything else as a properties file. An empty ref, or the name of the
// bundled rules when no such file exists, loads the bundled rules. Every
// failure matches errors.ErrRules.
func (l *Loader) Load(ctx context.Context, ref string) (*RuleSet, error) {
	data, source, err := l.read(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", terrors.ErrRules, err)
	}
	return Parse(source, data)
}

func (l *Loader) read(ctx context.Context, ref string) ([]byte, string, error) {
	if ref == "" {
		return defaultRules, DefaultRulesReference, nil
	}

	u, err := url.Parse(ref)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			data, err := l.fetch(ctx, u.String())
			return data, ref, err
		case "file":
			ref = u.Path
		}
	}

	path, err := filepath.Abs(ref)
	if err != nil {
		return nil, ref, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && ref == DefaultRulesReference {
			return defaultRules, DefaultRulesReference, nil
		}
		return nil, ref, err
	}
	return data, path, nil
}

func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", rawURL, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxRulesSize))
}

// Parse parses rules read from source. The format is chosen by the
// extension of source.
func Parse(source string, data []byte) (*RuleSet, error) {
	var rs *RuleSet
	var err error
	switch strings.ToLower(filepath.Ext(sourcePath(source))) {
	case ".yaml", ".yml":
		rs, err = parseYAML(data)
	default:
		rs, err = parsePropertiesRules(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", terrors.ErrRules, source, err)
	}
	rs.Source = source
	if _, err := rs.Selection(); err != nil {
		return nil, err
	}
	if _, err := rs.PackageRenames(); err != nil {
		return nil, err
	}
	return rs, nil
}

// sourcePath strips any query from a URL source so its extension can be
// read.
func sourcePath(source string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && u.Path != "" {
		return u.Path
	}
	return source
}

func parseYAML(data []byte) (*RuleSet, error) {
	var raw yamlRules
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid rules YAML: %w", err)
	}
	return &RuleSet{
		Includes: raw.Selection.Include,
		Excludes: raw.Selection.Exclude,
		Renames:  raw.Renames,
	}, nil
}

func parsePropertiesRules(data []byte) (*RuleSet, error) {
	props, err := parseProperties(data)
	if err != nil {
		return nil, err
	}
	rs := &RuleSet{}
	rs.Includes, rs.Excludes = parseSelections(props[ResourceSelectionProperty])
	if rs.Renames, err = parseRenames(props[PackageRenameProperty]); err != nil {
		return nil, err
	}
	return rs, nil
}

// parseSelections splits a selection list on ',' and ';'. Patterns
// prefixed with '!' are excludes.
func parseSelections(text string) (includes, excludes []string) {
	for _, s := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ';' }) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if exclude, ok := strings.CutPrefix(s, "!"); ok {
			if exclude = strings.TrimSpace(exclude); exclude != "" {
				excludes = append(excludes, exclude)
			}
			continue
		}
		includes = append(includes, s)
	}
	return includes, excludes
}

// parseRenames splits a comma separated list of old=new package pairs.
func parseRenames(text string) (map[string]string, error) {
	renames := make(map[string]string)
	for _, pair := range strings.Split(text, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		from, to, ok := strings.Cut(pair, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid package rename %q: want old=new", pair)
		}
		if prev, dup := renames[from]; dup && prev != to {
			return nil, fmt.Errorf("package %q renamed to both %q and %q", from, prev, to)
		}
		renames[from] = to
	}
	return renames, nil
}

// Invert returns a rule set whose renames map each target back to its
// source. Selection patterns are kept.
func (rs *RuleSet) Invert() (*RuleSet, error) {
	inverted, err := rename.Invert(rs.Renames)
	if err != nil {
		return nil, fmt.Errorf("%w: inverting %s: %w", terrors.ErrRules, rs.Source, err)
	}
	return &RuleSet{
		Source:   rs.Source,
		Includes: rs.Includes,
		Excludes: rs.Excludes,
		Renames:  inverted,
	}, nil
}

// Selection compiles the selection patterns.
func (rs *RuleSet) Selection() (*selection.Rule, error) {
	rule, err := selection.New(rs.Includes, rs.Excludes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", terrors.ErrRules, rs.Source, err)
	}
	return rule, nil
}

// PackageRenames compiles the package renames.
func (rs *RuleSet) PackageRenames() (*rename.PackageRenames, error) {
	r, err := rename.New(rs.Renames)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", terrors.ErrRules, rs.Source, err)
	}
	return r, nil
}

// String lists the rules one per line, renames sorted by package.
func (rs *RuleSet) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rules [ %s ]\n", rs.Source)
	fmt.Fprintf(&b, "Includes [ %s ]\n", strings.Join(rs.Includes, ", "))
	fmt.Fprintf(&b, "Excludes [ %s ]\n", strings.Join(rs.Excludes, ", "))
	froms := make([]string, 0, len(rs.Renames))
	for from := range rs.Renames {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		fmt.Fprintf(&b, "Rename [ %s ] -> [ %s ]\n", from, rs.Renames[from])
	}
	return b.String()
}
