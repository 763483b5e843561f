package argparser

import (
	"fmt"
	"reflect"
	"sync"
)

// optionRef is one alias-map entry. Several aliases may point at the
// same spec; bool flags additionally register a negated "no-" alias.
type optionRef struct {
	spec    *argSpec
	negated bool
}

// argGroup collects specs for mutual-exclusion checks and help
// rendering. Group structure never influences parsing order.
type argGroup struct {
	name      string
	exclusive bool
	required  bool
	members   []*argSpec
}

// grammar is the resolved table for one interface struct: positional
// specs in declaration order, an alias map for options, a command index
// and the group structure. Built once per struct type and cached for
// the lifetime of the process.
type grammar struct {
	typ         reflect.Type
	specs       []*argSpec // declaration order, commands included
	positionals []*argSpec
	options     map[string]optionRef
	commands    map[string]*argSpec
	cmdList     []*argSpec
	groups      []*argGroup
	extraField  int // index of the []string leftover sink, -1 if absent
}

var grammarCache sync.Map // reflect.Type -> *grammar

// grammarFor returns the cached grammar for rt, building it on first
// use. The result is immutable and safe for concurrent parses.
func grammarFor(rt reflect.Type) (*grammar, error) {
	if cached, ok := grammarCache.Load(rt); ok {
		return cached.(*grammar), nil
	}
	g, err := buildGrammar(rt)
	if err != nil {
		return nil, err
	}
	actual, _ := grammarCache.LoadOrStore(rt, g)
	return actual.(*grammar), nil
}

func buildGrammar(rt reflect.Type) (*grammar, error) {
	if rt.Kind() != reflect.Struct {
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("argument definition must be a struct, got %v", rt),
		}
	}
	g := &grammar{
		typ:        rt,
		options:    make(map[string]optionRef),
		commands:   make(map[string]*argSpec),
		extraField: -1,
	}
	groupIndex := make(map[string]*argGroup)
	dests := make(map[string]string)

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		meta := parseFieldMeta(sf)
		if meta.flag == "-" {
			continue
		}
		if meta.extra {
			if sf.Type != reflect.TypeOf([]string(nil)) {
				return nil, &ConfigurationError{
					Field:  sf.Name,
					Reason: "extra sink field must be of type []string",
				}
			}
			g.extraField = i
			continue
		}

		spec, err := classify(sf, meta)
		if err != nil {
			return nil, err
		}
		if prev, dup := dests[spec.dest]; dup {
			return nil, &ConfigurationError{
				Field:  sf.Name,
				Reason: fmt.Sprintf("dest %q already used by field %q", spec.dest, prev),
			}
		}
		dests[spec.dest] = sf.Name
		g.specs = append(g.specs, spec)

		switch {
		case spec.shape == shapeCommand:
			if err := g.addCommand(spec); err != nil {
				return nil, err
			}
		case spec.isPositional():
			g.positionals = append(g.positionals, spec)
		default:
			if err := g.addOption(spec); err != nil {
				return nil, err
			}
		}

		if meta.group != "" {
			grp, ok := groupIndex[meta.group]
			if !ok {
				grp = &argGroup{name: meta.group}
				groupIndex[meta.group] = grp
				g.groups = append(g.groups, grp)
			}
			grp.exclusive = grp.exclusive || meta.groupExcl
			grp.required = grp.required || meta.groupReq
			grp.members = append(grp.members, spec)
		}
	}

	if err := g.checkPositionalArity(); err != nil {
		return nil, err
	}
	for _, grp := range g.groups {
		if !grp.exclusive {
			continue
		}
		for _, member := range grp.members {
			if member.isPositional() {
				return nil, &ConfigurationError{
					Field: member.fieldName,
					Reason: fmt.Sprintf(
						"positional argument cannot join exclusive group %q", grp.name,
					),
				}
			}
		}
	}
	for _, spec := range g.specs {
		if spec.defaultVal == nil || spec.shape == shapeCommand {
			continue
		}
		if spec.required {
			return nil, &ConfigurationError{
				Field:  spec.fieldName,
				Reason: "required argument cannot carry a default",
			}
		}
		if _, err := convertDefault(spec); err != nil {
			return nil, &ConfigurationError{
				Field:  spec.fieldName,
				Reason: fmt.Sprintf("default %q does not convert: %v", *spec.defaultVal, err),
			}
		}
	}
	return g, nil
}

func (g *grammar) addOption(spec *argSpec) error {
	for _, name := range spec.names {
		if name == "help" {
			return &ConfigurationError{
				Field:  spec.fieldName,
				Reason: `"help" is a reserved option name`,
			}
		}
		if _, dup := g.options[name]; dup {
			return &ConfigurationError{
				Field:  spec.fieldName,
				Reason: fmt.Sprintf("option %q is already registered", name),
			}
		}
		g.options[name] = optionRef{spec: spec}
	}
	// Plain bool flags answer to --no-<name> as well.
	if spec.shape == shapeScalar && len(spec.elems) == 1 && spec.elems[0].isBool && !spec.counter {
		neg := "no-" + spec.names[0]
		if _, dup := g.options[neg]; dup {
			return &ConfigurationError{
				Field:  spec.fieldName,
				Reason: fmt.Sprintf("option %q is already registered", neg),
			}
		}
		g.options[neg] = optionRef{spec: spec, negated: true}
	}
	return nil
}

func (g *grammar) addCommand(spec *argSpec) error {
	for _, name := range spec.names {
		if _, dup := g.commands[name]; dup {
			return &ConfigurationError{
				Field:  spec.fieldName,
				Reason: fmt.Sprintf("command %q is already registered", name),
			}
		}
		g.commands[name] = spec
	}
	g.cmdList = append(g.cmdList, spec)
	// Build the sub-grammar eagerly so declaration mistakes surface
	// before any token is read.
	if _, err := grammarFor(spec.cmdType); err != nil {
		return err
	}
	return nil
}

// checkPositionalArity rejects consumption-ambiguous declarations: an
// open-arity positional can only be the last positional slot.
func (g *grammar) checkPositionalArity() error {
	for i, spec := range g.positionals {
		if i == len(g.positionals)-1 {
			break
		}
		open := false
		switch spec.arity.kind {
		case arityOneOrMore, arityZeroOrMore, arityZeroOrOne, arityUpTo:
			open = true
		case arityOne:
			// Positional lists without nargs claim greedily at parse
			// time, which is just as open.
			open = spec.shape == shapeList || spec.shape == shapeListMap
		}
		if open {
			return &ConfigurationError{
				Field: spec.fieldName,
				Reason: fmt.Sprintf(
					"open-arity positional %q makes later positionals ambiguous",
					spec.displayName,
				),
			}
		}
	}
	return nil
}

// checkSiblingOptions rejects duplicate option names across sibling
// commands. Only meaningful when multiple commands can be chained in
// one invocation.
func (g *grammar) checkSiblingOptions() error {
	seen := make(map[string]string)
	for _, cmd := range g.cmdList {
		sub, err := grammarFor(cmd.cmdType)
		if err != nil {
			return err
		}
		for name := range sub.options {
			if prev, dup := seen[name]; dup {
				return &ConfigurationError{
					Field: cmd.fieldName,
					Reason: fmt.Sprintf(
						"option %q is duplicated in sibling commands %s, %s",
						name, prev, cmd.displayName,
					),
				}
			}
			seen[name] = cmd.displayName
		}
	}
	return nil
}
