package transform

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stackb/jvm-transformer/pkg/action"
)

// Report logs a summary of the changes made to a top level input. Nothing
// beyond a one line notice is logged when nothing changed. Service
// configuration diffs are logged at debug level.
func Report(logger zerolog.Logger, changes *action.Changes) {
	if changes == nil {
		return
	}
	if !changes.HasChanges() {
		logger.Info().Msgf("Resource [ %s ]: No changes", changes.InputResource)
		return
	}
	switch {
	case changes.Class != nil:
		reportClass(logger, changes.Class)
	case changes.ServiceConfig != nil:
		reportServiceConfig(logger, changes)
	case changes.Container != nil:
		reportContainer(logger, changes.Container)
		reportDiffs(logger, changes.Container)
	}
}

func reportClass(logger zerolog.Logger, c *action.ClassChanges) {
	logger.Info().Msgf("Class name [ %s ] [ %s ]", c.InputClassName, c.OutputClassName)
	if c.InputSuperName != "" {
		logger.Info().Msgf("Super class name [ %s ] [ %s ]", c.InputSuperName, c.OutputSuperName)
	}
	logger.Info().Msgf("Modified interfaces [ %s ]", join(c.ModifiedInterfaces))
	logger.Info().Msgf("Modified fields     [ %s ]", join(c.ModifiedFields))
	logger.Info().Msgf("Modified methods    [ %s ]", join(c.ModifiedMethods))
	logger.Info().Msgf("Modified constants  [ %s ]", join(c.ModifiedConstants))
}

func reportServiceConfig(logger zerolog.Logger, changes *action.Changes) {
	logger.Info().Msgf("Service config [ %s ] [ %s ] Changed lines [ %d ]",
		changes.InputResource, changes.OutputResource, changes.ServiceConfig.ChangedLines)
	if diff := changes.ServiceConfig.Diff; diff != "" {
		logger.Debug().Msgf("Service config [ %s ] diff:\n%s", changes.InputResource, diff)
	}
}

func reportContainer(logger zerolog.Logger, c *action.ContainerChanges) {
	logger.Info().Msgf("Changed classes           [ %s ]", strings.Join(c.ChangedClasses(), ", "))
	logger.Info().Msgf("Unchanged classes         [ %s ]", strings.Join(c.UnchangedClasses(), ", "))
	logger.Info().Msgf("Changed service config    [ %s ]", strings.Join(c.ChangedServiceConfigs(), ", "))
	logger.Info().Msgf("Unchanged service config  [ %s ]", strings.Join(c.UnchangedServiceConfigs(), ", "))
	logger.Info().Msgf("Non-class resources       [ %s ]", strings.Join(c.AdditionalResources(), ", "))
	if dups := c.Duplicates(); len(dups) > 0 {
		logger.Warn().Msgf("Duplicate entries         [ %s ]", strings.Join(dups, ", "))
	}

	totals := c.Totals()
	logger.Info().
		Int("entries", totals.Entries()).
		Int("changed", totals.Changed).
		Int("unchanged", totals.Unchanged).
		Int("unselected", totals.Unselected).
		Int("unaccepted", totals.Unaccepted).
		Int("duplicate", totals.Duplicate).
		Msg("Totals, including nested archives")
}

// reportDiffs logs the diff of every changed service configuration,
// descending into nested archives.
func reportDiffs(logger zerolog.Logger, c *action.ContainerChanges) {
	if logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	for _, e := range c.Entries {
		switch {
		case e.Changes == nil:
		case e.Changes.Container != nil:
			reportDiffs(logger, e.Changes.Container)
		case e.Changes.ServiceConfig != nil && e.Changes.ServiceConfig.Diff != "":
			logger.Debug().Msgf("Service config [ %s ] diff:\n%s", e.Name, e.Changes.ServiceConfig.Diff)
		}
	}
}

func join[T fmt.Stringer](items []T) string {
	s := make([]string, len(items))
	for i, item := range items {
		s[i] = item.String()
	}
	return strings.Join(s, ", ")
}
