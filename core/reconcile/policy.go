// Package reconcile merges incoming annotations into a live document.
//
// Two independent policies govern a reconciliation session: one for
// annotations whose id is absent from the target set and one for annotations
// whose id already exists there. Decide maps the pair onto a single Action;
// Reconciler carries the action out.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/bdoc/core/errors"
)

// NewAnnotationPolicy governs incoming annotations whose id is not in the target set.
type NewAnnotationPolicy int

const (
	// UseSourceID inserts the annotation under its incoming id.
	UseSourceID NewAnnotationPolicy = iota
	// AssignFreshID inserts the annotation under a newly allocated id.
	AssignFreshID
)

var newPolicyNames = map[NewAnnotationPolicy]string{
	UseSourceID:   "use-source-id",
	AssignFreshID: "assign-fresh-id",
}

// newPolicyAliases also accepts the historic option names.
var newPolicyAliases = map[string]NewAnnotationPolicy{
	"use-source-id":    UseSourceID,
	"add-with-bdoc-id": UseSourceID,
	"assign-fresh-id":  AssignFreshID,
	"add-with-new-id":  AssignFreshID,
}

// String returns the policy name.
func (p NewAnnotationPolicy) String() string {
	if s, ok := newPolicyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("NewAnnotationPolicy(%d)", int(p))
}

// IsValid returns true if p is a known policy.
func (p NewAnnotationPolicy) IsValid() bool {
	_, ok := newPolicyNames[p]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (p NewAnnotationPolicy) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, errors.NewValidation("new_annotations", p.String())
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *NewAnnotationPolicy) UnmarshalText(text []byte) error {
	v, err := ParseNewAnnotationPolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParseNewAnnotationPolicy parses a policy name. Case and the choice of
// '-' or '_' as separator do not matter.
func ParseNewAnnotationPolicy(s string) (NewAnnotationPolicy, error) {
	if p, ok := newPolicyAliases[normalizeName(s)]; ok {
		return p, nil
	}
	return 0, errors.NewValidation("new_annotations", fmt.Sprintf("unknown policy %q", s))
}

// ExistingAnnotationPolicy governs incoming annotations whose id is already in the target set.
type ExistingAnnotationPolicy int

const (
	// AddWithFreshID inserts the incoming annotation as a distinct annotation.
	AddWithFreshID ExistingAnnotationPolicy = iota
	// ReplaceAnnotation swaps the stored annotation for the incoming one, keeping its id.
	ReplaceAnnotation
	// ReplaceFeatures replaces the stored feature map with the incoming one.
	ReplaceFeatures
	// MergeFeaturesOverwrite copies every incoming feature over the stored ones.
	MergeFeaturesOverwrite
	// MergeFeaturesAddOnly copies only features the stored annotation lacks.
	MergeFeaturesAddOnly
	// Ignore leaves the stored annotation unchanged.
	Ignore
)

var existingPolicyNames = map[ExistingAnnotationPolicy]string{
	AddWithFreshID:         "add-with-fresh-id",
	ReplaceAnnotation:      "replace-annotation",
	ReplaceFeatures:        "replace-features",
	MergeFeaturesOverwrite: "merge-features-overwrite",
	MergeFeaturesAddOnly:   "merge-features-add-only",
	Ignore:                 "ignore",
}

var existingPolicyAliases = map[string]ExistingAnnotationPolicy{
	"add-with-fresh-id":        AddWithFreshID,
	"add-with-new-id":          AddWithFreshID,
	"assign-fresh-id":          AddWithFreshID,
	"replace-annotation":       ReplaceAnnotation,
	"replace-features":         ReplaceFeatures,
	"merge-features-overwrite": MergeFeaturesOverwrite,
	"merge-overwrite":          MergeFeaturesOverwrite,
	"update-features":          MergeFeaturesOverwrite,
	"merge-features-add-only":  MergeFeaturesAddOnly,
	"merge-add-only":           MergeFeaturesAddOnly,
	"add-new-features":         MergeFeaturesAddOnly,
	"ignore":                   Ignore,
}

// String returns the policy name.
func (p ExistingAnnotationPolicy) String() string {
	if s, ok := existingPolicyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("ExistingAnnotationPolicy(%d)", int(p))
}

// IsValid returns true if p is a known policy.
func (p ExistingAnnotationPolicy) IsValid() bool {
	_, ok := existingPolicyNames[p]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (p ExistingAnnotationPolicy) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, errors.NewValidation("existing_annotations", p.String())
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ExistingAnnotationPolicy) UnmarshalText(text []byte) error {
	v, err := ParseExistingAnnotationPolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParseExistingAnnotationPolicy parses a policy name.
func ParseExistingAnnotationPolicy(s string) (ExistingAnnotationPolicy, error) {
	if p, ok := existingPolicyAliases[normalizeName(s)]; ok {
		return p, nil
	}
	return 0, errors.NewValidation("existing_annotations", fmt.Sprintf("unknown policy %q", s))
}

func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
}

// Options configures one reconciliation session.
type Options struct {
	NewAnnotations      NewAnnotationPolicy
	ExistingAnnotations ExistingAnnotationPolicy

	// SetNames restricts Document to these incoming sets. Nil means all sets.
	SetNames []string

	// FeatureNames restricts Document to these document features. Nil means all.
	FeatureNames []string
}

// DefaultOptions returns the session defaults: source ids for new
// annotations, fresh ids for colliding ones.
func DefaultOptions() Options {
	return Options{
		NewAnnotations:      UseSourceID,
		ExistingAnnotations: AddWithFreshID,
	}
}

// Validate checks that both policies are known.
func (o Options) Validate() error {
	if !o.NewAnnotations.IsValid() {
		return errors.NewValidation("new_annotations", o.NewAnnotations.String())
	}
	if !o.ExistingAnnotations.IsValid() {
		return errors.NewValidation("existing_annotations", o.ExistingAnnotations.String())
	}
	return nil
}

// Action is the effect chosen for one incoming annotation.
type Action int

const (
	ActionInsertFresh Action = iota
	ActionInsertSourceID
	ActionReplaceAnnotation
	ActionReplaceFeatures
	ActionMergeOverwrite
	ActionMergeAddOnly
	ActionIgnore
)

var actionNames = [...]string{
	ActionInsertFresh:       "insert-fresh",
	ActionInsertSourceID:    "insert-source-id",
	ActionReplaceAnnotation: "replace-annotation",
	ActionReplaceFeatures:   "replace-features",
	ActionMergeOverwrite:    "merge-overwrite",
	ActionMergeAddOnly:      "merge-add-only",
	ActionIgnore:            "ignore",
}

func (a Action) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Inserts reports whether the action creates a new annotation.
func (a Action) Inserts() bool {
	return a == ActionInsertFresh || a == ActionInsertSourceID
}

// ChecksSpan reports whether the action requires the incoming span to match the stored one.
func (a Action) ChecksSpan() bool {
	switch a {
	case ActionReplaceAnnotation, ActionReplaceFeatures, ActionMergeOverwrite, ActionMergeAddOnly, ActionIgnore:
		return true
	}
	return false
}

// Decide returns the action for an incoming annotation. existing reports
// whether its id is already present in the target set.
func Decide(existing bool, opts Options) Action {
	if !existing {
		if opts.NewAnnotations == AssignFreshID {
			return ActionInsertFresh
		}
		return ActionInsertSourceID
	}
	switch opts.ExistingAnnotations {
	case ReplaceAnnotation:
		return ActionReplaceAnnotation
	case ReplaceFeatures:
		return ActionReplaceFeatures
	case MergeFeaturesOverwrite:
		return ActionMergeOverwrite
	case MergeFeaturesAddOnly:
		return ActionMergeAddOnly
	case Ignore:
		return ActionIgnore
	default:
		return ActionInsertFresh
	}
}
