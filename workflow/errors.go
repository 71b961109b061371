package workflow

import (
	"errors"

	"github.com/mmdatafocus/indicator_monitor/models"
)

var (
	// ErrConfiguration means the indicator has no family binding or no target; evaluation is skipped.
	ErrConfiguration = errors.New("indicator configuration error")
	// ErrTransientStore wraps fact/indicator store failures that a later attempt may not hit.
	ErrTransientStore = errors.New("transient store error")
	// ErrDuplicateMaterialization is a lost create race against a concurrent run; never surfaced.
	ErrDuplicateMaterialization = errors.New("duplicate materialization race")
	ErrSweepInProgress          = errors.New("sweep already in progress")
	ErrIndicatorNotFound        = models.ErrIndicatorNotFound
)
