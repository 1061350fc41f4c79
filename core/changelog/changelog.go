// Package changelog records and replays ordered edits to a document.
//
// A ChangeLog is a flat list of commands in one offset convention. Replaying
// it against a document applies the commands strictly in order; annotation
// additions go through a reconcile.Reconciler so the caller's merge policies
// decide what an incoming annotation does.
package changelog

import (
	"fmt"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/errors"
	"github.com/FocuswithJustin/bdoc/core/offsets"
)

// Op is a change-log command name as written on the wire.
type Op string

// Command vocabulary.
const (
	OpDocFeaturesClear  Op = "doc-features:clear"
	OpDocFeatureSet     Op = "doc-feature:set"
	OpDocFeatureRemove  Op = "doc-feature:remove"
	OpAnnFeaturesClear  Op = "ann-features:clear"
	OpAnnFeatureSet     Op = "ann-feature:set"
	OpAnnFeatureRemove  Op = "ann-feature:remove"
	OpAnnotationAdd     Op = "annotation:add"
	OpAnnotationRemove  Op = "annotation:remove"
	OpAnnotationsClear  Op = "annotations:clear"
	OpAnnotationsRemove Op = "annotations:remove"
)

// validOps is the set of known commands.
var validOps = map[Op]bool{
	OpDocFeaturesClear:  true,
	OpDocFeatureSet:     true,
	OpDocFeatureRemove:  true,
	OpAnnFeaturesClear:  true,
	OpAnnFeatureSet:     true,
	OpAnnFeatureRemove:  true,
	OpAnnotationAdd:     true,
	OpAnnotationRemove:  true,
	OpAnnotationsClear:  true,
	OpAnnotationsRemove: true,
}

// IsValid returns true if the command is part of the vocabulary.
func (o Op) IsValid() bool {
	return validOps[o]
}

// setScoped reports whether the command addresses an annotation set.
func (o Op) setScoped() bool {
	switch o {
	case OpDocFeaturesClear, OpDocFeatureSet, OpDocFeatureRemove:
		return false
	}
	return true
}

// Command is one change-log entry. Optional wire fields are pointers so
// that an absent field can be told apart from a zero value.
type Command struct {
	Command  Op            `json:"command" yaml:"command" msgpack:"command"`
	Set      *string       `json:"set,omitempty" yaml:"set,omitempty" msgpack:"set,omitempty"`
	ID       *int64        `json:"id,omitempty" yaml:"id,omitempty" msgpack:"id,omitempty"`
	Feature  *string       `json:"feature,omitempty" yaml:"feature,omitempty" msgpack:"feature,omitempty"`
	Value    any           `json:"value,omitempty" yaml:"value,omitempty" msgpack:"value,omitempty"`
	Start    *int64        `json:"start,omitempty" yaml:"start,omitempty" msgpack:"start,omitempty"`
	End      *int64        `json:"end,omitempty" yaml:"end,omitempty" msgpack:"end,omitempty"`
	Type     string        `json:"type,omitempty" yaml:"type,omitempty" msgpack:"type,omitempty"`
	Features bdoc.Features `json:"features,omitempty" yaml:"features,omitempty" msgpack:"features,omitempty"`
}

// SetName returns the addressed set name, or "" when absent.
func (c *Command) SetName() string {
	if c.Set == nil {
		return ""
	}
	return *c.Set
}

// FeatureName returns the addressed feature name, or "" when absent.
func (c *Command) FeatureName() string {
	if c.Feature == nil {
		return ""
	}
	return *c.Feature
}

// ChangeLog is an ordered list of commands in one offset convention.
type ChangeLog struct {
	OffsetType bdoc.OffsetType `json:"offset_type" yaml:"offset_type" msgpack:"offset_type"`
	Changes    []Command       `json:"changes" yaml:"changes" msgpack:"changes"`
}

// New creates an empty change log.
func New(offsetType bdoc.OffsetType) *ChangeLog {
	return &ChangeLog{OffsetType: offsetType}
}

// Len returns the number of commands.
func (l *ChangeLog) Len() int {
	return len(l.Changes)
}

// ConvertOffsets rewrites the start and end of every command into target
// using ix, an index of the document text the log refers to. Either every
// command is rewritten or none is.
func (l *ChangeLog) ConvertOffsets(ix *offsets.Index, target bdoc.OffsetType) error {
	if !target.IsValid() {
		return errors.NewValidation("offset_type", fmt.Sprintf("unknown offset type %q", string(target)))
	}
	if l.OffsetType == target {
		return nil
	}
	conv := bdoc.Converter(ix, l.OffsetType, target)

	type rewrite struct {
		field *int64
		value int64
	}
	var pending []rewrite
	for i := range l.Changes {
		c := &l.Changes[i]
		for _, field := range []*int64{c.Start, c.End} {
			if field == nil {
				continue
			}
			v, err := conv(*field)
			if err != nil {
				return errors.Wrapf(err, "change %d (%s)", i, c.Command)
			}
			pending = append(pending, rewrite{field, v})
		}
	}
	for _, r := range pending {
		*r.field = r.value
	}
	l.OffsetType = target
	return nil
}

// Validate checks every command for the fields its operation needs.
func (l *ChangeLog) Validate() error {
	if !l.OffsetType.IsValid() {
		return errors.NewValidation("offset_type", fmt.Sprintf("invalid offset type %q", string(l.OffsetType)))
	}
	for i := range l.Changes {
		if err := l.Changes[i].validate(); err != nil {
			return errors.Wrapf(err, "change %d (%s)", i, l.Changes[i].Command)
		}
	}
	return nil
}

func (c *Command) validate() error {
	if !c.Command.IsValid() {
		return errors.NewUnsupported("command", fmt.Sprintf("unknown command %q", string(c.Command)))
	}
	if c.Command.setScoped() && c.Set == nil {
		return errors.NewValidation("set", "required")
	}
	switch c.Command {
	case OpDocFeatureSet, OpDocFeatureRemove:
		if c.Feature == nil {
			return errors.NewValidation("feature", "required")
		}
	case OpAnnFeatureSet, OpAnnFeatureRemove:
		if c.ID == nil {
			return errors.NewValidation("id", "required")
		}
		if c.Feature == nil {
			return errors.NewValidation("feature", "required")
		}
	case OpAnnotationRemove:
		if c.ID == nil {
			return errors.NewValidation("id", "required")
		}
	case OpAnnotationAdd:
		if c.ID == nil {
			return errors.NewValidation("id", "required")
		}
		if c.Start == nil || c.End == nil {
			return errors.NewValidation("span", "start and end are required")
		}
	}
	return nil
}
