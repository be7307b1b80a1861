package definition

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-facade/internal/facade"
)

// ValidationError reports one problem in a definition.
type ValidationError struct {
	Attribute string
	Field     string
	Err       error
}

func (e ValidationError) Error() string {
	switch {
	case e.Attribute != "" && e.Field != "":
		return fmt.Sprintf("attribute %s: %s: %v", e.Attribute, e.Field, e.Err)
	case e.Attribute != "":
		return fmt.Sprintf("attribute %s: %v", e.Attribute, e.Err)
	}
	return e.Err.Error()
}

func (e ValidationError) Unwrap() error { return e.Err }

// Validate checks a definition against the rule registry: required
// fields, unique names, fields allowed per kind, and rule names and
// arguments. Bindings to other attributes are checked when the device
// graph is built.
func Validate(def *Definition, reg *Registry) []ValidationError {
	var errs []ValidationError
	fail := func(attr, field string, err error) {
		errs = append(errs, ValidationError{Attribute: attr, Field: field, Err: err})
	}

	seen := make(map[string]bool)
	for i, a := range def.Attributes {
		if a.Name == "" {
			fail(fmt.Sprintf("#%d", i), "name", ErrMissingField)
			continue
		}
		if seen[a.Name] {
			fail(a.Name, "name", ErrDuplicateAttribute)
		}
		seen[a.Name] = true

		kind, err := facade.ParseKind(a.Kind)
		if err != nil {
			fail(a.Name, "kind", err)
			continue
		}
		for _, field := range unexpectedFields(kind, a) {
			fail(a.Name, field, ErrUnexpectedField)
		}

		switch kind {
		case facade.KindLogical:
			requireRule(a, fail)
			if len(a.Bind) == 0 {
				fail(a.Name, "bind", ErrMissingField)
			}
		case facade.KindProxy:
			if a.Source == "" {
				fail(a.Name, "source", ErrMissingField)
			}
		case facade.KindCombined:
			requireRule(a, fail)
			if len(a.Sources) == 0 {
				fail(a.Name, "sources", ErrMissingField)
			}
		case facade.KindState:
			if a.Rule != "" && len(a.Bind) == 0 {
				fail(a.Name, "bind", ErrMissingField)
			}
		}

		if a.Rule != "" {
			if _, err := reg.Rule(a.Rule, a.Args); err != nil {
				fail(a.Name, "rule", err)
			}
		}
	}
	return errs
}

func requireRule(a Attribute, fail func(attr, field string, err error)) {
	if a.Rule == "" {
		fail(a.Name, "rule", ErrMissingField)
	}
}

// unexpectedFields lists the fields set on a that its kind ignores.
func unexpectedFields(kind facade.Kind, a Attribute) []string {
	var out []string
	check := func(set bool, field string, allowed ...facade.Kind) {
		if !set {
			return
		}
		for _, k := range allowed {
			if k == kind {
				return
			}
		}
		out = append(out, field)
	}
	check(a.Source != "", "source", facade.KindProxy)
	check(len(a.Sources) > 0, "sources", facade.KindCombined)
	check(len(a.Exclude) > 0, "exclude", facade.KindCombined)
	check(a.Rule != "", "rule", facade.KindLogical, facade.KindProxy, facade.KindCombined, facade.KindState)
	check(len(a.Bind) > 0, "bind", facade.KindLogical, facade.KindState)
	check(a.Writable, "writable", facade.KindLocal, facade.KindProxy, facade.KindState)
	check(a.Initial != nil, "initial", facade.KindLocal)
	return out
}

// Apply declares the attributes of def on dev.
func Apply(dev *facade.Device, def *Definition, reg *Registry) error {
	if verrs := Validate(def, reg); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return fmt.Errorf("invalid definition: %w", errors.Join(errs...))
	}
	if def.Clock {
		if err := dev.EnableClock(nil); err != nil {
			return err
		}
	}
	for _, a := range def.Attributes {
		if err := declare(dev, a, reg); err != nil {
			return fmt.Errorf("declaring %s: %w", a.Name, err)
		}
	}
	return nil
}

// Build creates a device named after def, or after name when def has no
// device name, and declares its attributes.
func Build(name string, def *Definition, reg *Registry, opts ...facade.Option) (*facade.Device, error) {
	if def.Device != "" {
		name = def.Device
	}
	if name == "" {
		return nil, fmt.Errorf("%w: device", ErrMissingField)
	}
	if len(def.IgnoredReasons) > 0 {
		opts = append(opts, facade.WithIgnoredReasons(def.IgnoredReasons...))
	}
	dev := facade.New(name, opts...)
	if err := Apply(dev, def, reg); err != nil {
		return nil, err
	}
	return dev, nil
}

func declare(dev *facade.Device, a Attribute, reg *Registry) error {
	opts := attrOptions(a)
	kind, _ := facade.ParseKind(a.Kind)

	var rule facade.Rule
	if a.Rule != "" {
		fn, err := reg.Rule(a.Rule, a.Args)
		if err != nil {
			return err
		}
		rule = facade.Rule{Bind: a.Bind, Func: fn}
	}

	switch kind {
	case facade.KindLogical:
		return dev.AddLogical(a.Name, rule, opts...)
	case facade.KindProxy:
		if a.Rule != "" {
			opts = append(opts, facade.Computed(rule))
		}
		return dev.AddProxy(a.Name, a.Source, opts...)
	case facade.KindCombined:
		if len(a.Exclude) > 0 {
			opts = append(opts, facade.Exclude(a.Exclude...))
		}
		return dev.AddCombined(a.Name, a.Sources, rule, opts...)
	case facade.KindState:
		if a.Rule != "" {
			opts = append(opts, facade.Computed(rule))
		}
		return dev.AddState(a.Name, opts...)
	}
	return dev.AddLocal(a.Name, opts...)
}

func attrOptions(a Attribute) []facade.AttrOption {
	var opts []facade.AttrOption
	if a.Description != "" {
		opts = append(opts, facade.Description(a.Description))
	}
	if a.Writable {
		opts = append(opts, facade.Writable())
	}
	if a.Hidden {
		opts = append(opts, facade.Hidden())
	}
	if a.Zero != nil {
		opts = append(opts, facade.Zero(a.Zero))
	}
	if a.Initial != nil {
		v := a.Initial
		opts = append(opts, facade.Initial(func() (any, error) { return v, nil }))
	}
	return opts
}
