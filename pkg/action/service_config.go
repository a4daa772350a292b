package action

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog"

	"github.com/stackb/jvm-transformer/pkg/rename"
)

const (
	// ServiceConfigActionName is the name of the service configuration action.
	ServiceConfigActionName = "Service Config Action"

	// ServiceConfigPrefix is the directory holding service provider
	// configuration files.
	ServiceConfigPrefix = "META-INF/services/"
)

// ServiceConfigAction renames the provider class names listed in service
// configuration files, and the service name the file is named after.
type ServiceConfigAction struct {
	renames *rename.PackageRenames
	logger  zerolog.Logger
}

// NewServiceConfigAction creates a ServiceConfigAction.
func NewServiceConfigAction(opts Options) *ServiceConfigAction {
	return &ServiceConfigAction{
		renames: opts.Renames,
		logger:  opts.Logger.With().Str("action", ServiceConfigActionName).Logger(),
	}
}

// Name implements Action.
func (a *ServiceConfigAction) Name() string {
	return ServiceConfigActionName
}

// Accepts implements Action.
func (a *ServiceConfigAction) Accepts(resourceName string) bool {
	service, ok := strings.CutPrefix(resourceName, ServiceConfigPrefix)
	return ok && service != "" && !strings.Contains(service, "/")
}

// Handler implements Action.
func (a *ServiceConfigAction) Handler() Handler {
	return BufferedFunc(a.Apply)
}

// Apply transforms a service configuration file. Lines are rewritten one by
// one: blank lines and comments are kept verbatim, as are line endings and
// surrounding whitespace.
func (a *ServiceConfigAction) Apply(name string, data []byte) ([]byte, *Changes, error) {
	sc := &ServiceConfigChanges{}
	changes := &Changes{
		Action:         ServiceConfigActionName,
		InputResource:  name,
		OutputResource: a.resourceName(name),
		ServiceConfig:  sc,
	}

	input := string(data)
	lines := strings.SplitAfter(input, "\n")
	for i, line := range lines {
		renamed, ok := a.renameLine(line)
		if ok {
			lines[i] = renamed
			sc.ChangedLines++
		}
	}
	if changes.HasResourceNameChange() {
		a.logger.Debug().Msgf("Service name [ %s ] -> [ %s ]", name, changes.OutputResource)
	}
	if sc.ChangedLines == 0 {
		return data, changes, nil
	}

	output := strings.Join(lines, "")
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(input),
		B:        difflib.SplitLines(output),
		FromFile: name,
		ToFile:   changes.OutputResource,
		Context:  1,
	})
	if err != nil {
		return nil, nil, err
	}
	sc.Diff = diff
	a.logger.Debug().Str("resource", name).Int("lines", sc.ChangedLines).Msg("Service config changed")
	return []byte(output), changes, nil
}

func (a *ServiceConfigAction) renameLine(line string) (string, bool) {
	body := strings.TrimRight(line, "\r\n")
	ending := line[len(body):]
	name := strings.TrimSpace(body)
	if name == "" || strings.HasPrefix(name, "#") {
		return line, false
	}
	// a provider name may be followed by a comment
	if i := strings.IndexByte(name, '#'); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	renamed, ok := a.renames.DottedClassName(name)
	if !ok {
		return line, false
	}
	return strings.Replace(body, name, renamed, 1) + ending, true
}

func (a *ServiceConfigAction) resourceName(name string) string {
	service := strings.TrimPrefix(name, ServiceConfigPrefix)
	if renamed, ok := a.renames.DottedClassName(service); ok {
		return ServiceConfigPrefix + renamed
	}
	return name
}
