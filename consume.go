package argparser

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrHelp is returned by ParseArgs when the token stream asks for the
// help message.
var ErrHelp = errors.New("argument is help message")

// accum is the per-parse merged value of one spec. It lives only for
// the duration of a single parse call and is committed to the target
// struct only when the whole pass succeeds.
type accum struct {
	val   reflect.Value
	count int
}

// tokenConsumer drives a single left-to-right pass over the token
// stream for one grammar level. Nested commands get their own consumer.
type tokenConsumer struct {
	g          *grammar
	cfg        Config
	validators map[string][]Validator
	acc        map[string]*accum
	extra      []string
	subResults map[string]reflect.Value
	activeCmds int
}

func newConsumer(g *grammar, cfg Config, validators map[string][]Validator) *tokenConsumer {
	return &tokenConsumer{
		g:          g,
		cfg:        cfg,
		validators: validators,
		acc:        make(map[string]*accum),
		subResults: make(map[string]reflect.Value),
	}
}

func isOptionToken(tok string) bool {
	return len(tok) > 1 && tok[0] == '-' && tok != "--"
}

func splitOptionToken(tok string) (name, inline string, hasInline bool) {
	body := strings.TrimLeft(tok, "-")
	if k, v, ok := strings.Cut(body, "="); ok {
		return k, v, true
	}
	return body, "", false
}

func splitKV(tok string) (string, string, error) {
	if strings.Count(tok, "=") != 1 {
		return "", "", fmt.Errorf("%q is not of the form key=value", tok)
	}
	key, val, _ := strings.Cut(tok, "=")
	if key == "" {
		return "", "", fmt.Errorf("%q has no key", tok)
	}
	return key, val, nil
}

// run consumes tokens until the stream is exhausted or a stop word (a
// sibling command at the parent level) is reached. It returns the
// unconsumed remainder.
func (c *tokenConsumer) run(tokens []string, stops map[string]bool, base int) ([]string, error) {
	posIdx := 0
	onlyPositional := false
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		pos := base + i

		if !onlyPositional && tok == "--" {
			onlyPositional = true
			i++
			continue
		}

		if !onlyPositional && isOptionToken(tok) {
			name, inline, hasInline := splitOptionToken(tok)
			ref, ok := c.g.options[name]
			if !ok {
				if name == "help" || name == "h" {
					return nil, ErrHelp
				}
				if err := c.unrecognized(tok, pos); err != nil {
					return nil, err
				}
				i++
				continue
			}
			var vals []string
			if hasInline {
				vals = append(vals, inline)
			}
			more, taken, err := c.claim(ref.spec, tokens[i+1:], stops, len(vals))
			if err != nil {
				return nil, err
			}
			vals = append(vals, more...)
			if err := c.merge(ref.spec, ref.negated, vals, pos); err != nil {
				return nil, err
			}
			i += 1 + taken
			continue
		}

		if posIdx < len(c.g.positionals) {
			spec := c.g.positionals[posIdx]
			vals, taken, err := c.claimPositional(spec, tokens[i:], stops, onlyPositional)
			if err != nil {
				return nil, err
			}
			posIdx++
			if taken == 0 {
				// Open arity satisfied by zero tokens; the front token
				// goes to the next eligible consumer.
				continue
			}
			if err := c.merge(spec, false, vals, pos); err != nil {
				return nil, err
			}
			i += taken
			continue
		}

		if spec, ok := c.g.commands[tok]; ok && !onlyPositional {
			if c.activeCmds > 0 && !c.cfg.AllowMultipleCommands {
				if err := c.unrecognized(tok, pos); err != nil {
					return nil, err
				}
				i++
				continue
			}
			leftover, err := c.dispatch(spec, tokens[i+1:], stops, pos+1)
			if err != nil {
				return nil, err
			}
			consumedBySub := len(tokens) - i - 1 - len(leftover)
			base = pos + 1 + consumedBySub
			tokens = leftover
			i = 0
			continue
		}

		if stops != nil && stops[tok] {
			return tokens[i:], nil
		}

		if err := c.unrecognized(tok, pos); err != nil {
			return nil, err
		}
		i++
	}
	return nil, nil
}

func (c *tokenConsumer) unrecognized(tok string, pos int) error {
	switch c.cfg.ExtraArguments {
	case ExtraIgnore:
	case ExtraAllow:
		c.extra = append(c.extra, tok)
	default:
		return &UnexpectedArgumentError{Token: tok, Position: pos}
	}
	return nil
}

// claim reads the value tokens one option occurrence demands. already
// counts inline ("--opt=value") values that were provided with the
// option token itself.
func (c *tokenConsumer) claim(
	spec *argSpec, rest []string, stops map[string]bool, already int,
) (vals []string, taken int, err error) {
	avail := func(j int) bool {
		if j >= len(rest) {
			return false
		}
		tok := rest[j]
		if isOptionToken(tok) || tok == "--" {
			return false
		}
		if _, isCmd := c.g.commands[tok]; isCmd {
			return false
		}
		return stops == nil || !stops[tok]
	}

	switch spec.arity.kind {
	case arityZero:
		return nil, 0, nil

	case arityOne:
		if already >= 1 {
			return nil, 0, nil
		}
		if len(rest) == 0 {
			return nil, 0, &MissingValueError{Field: spec.displayName, Expected: 1, Got: 0}
		}
		return rest[:1], 1, nil

	case arityExact:
		want := spec.arity.n - already
		if want > len(rest) {
			return nil, 0, &MissingValueError{
				Field:    spec.displayName,
				Expected: spec.arity.n,
				Got:      already + len(rest),
			}
		}
		return rest[:want], want, nil

	case arityZeroOrOne:
		if already >= 1 || !avail(0) {
			return nil, 0, nil
		}
		return rest[:1], 1, nil

	case arityOneOrMore, arityZeroOrMore:
		j := 0
		for avail(j) {
			j++
		}
		if spec.arity.kind == arityOneOrMore && already+j < 1 {
			return nil, 0, &MissingValueError{Field: spec.displayName, Expected: 1, Got: 0}
		}
		return rest[:j], j, nil

	case arityUpTo:
		j := 0
		for already+j < spec.arity.n && avail(j) && strings.Contains(rest[j], "=") {
			j++
		}
		if already+j == 0 {
			return nil, 0, &MissingValueError{Field: spec.displayName, Expected: 1, Got: 0}
		}
		return rest[:j], j, nil
	}
	return nil, 0, nil
}

// claimPositional reads the tokens the front positional slot demands.
// Positional lists without a declared nargs claim greedily. After the
// "--" terminator (raw) every token is an eligible value, option-looking
// or not.
func (c *tokenConsumer) claimPositional(
	spec *argSpec, rest []string, stops map[string]bool, raw bool,
) (vals []string, taken int, err error) {
	ar := spec.arity
	if ar.kind == arityOne && (spec.shape == shapeList || spec.shape == shapeListMap) {
		ar = arity{kind: arityOneOrMore}
	}
	avail := func(j int) bool {
		if j >= len(rest) {
			return false
		}
		if raw {
			return true
		}
		tok := rest[j]
		if isOptionToken(tok) || tok == "--" {
			return false
		}
		if _, isCmd := c.g.commands[tok]; isCmd {
			return false
		}
		return stops == nil || !stops[tok]
	}

	switch ar.kind {
	case arityOne:
		return rest[:1], 1, nil
	case arityExact:
		if ar.n > len(rest) {
			return nil, 0, &MissingValueError{
				Field:    spec.displayName,
				Expected: ar.n,
				Got:      len(rest),
			}
		}
		return rest[:ar.n], ar.n, nil
	case arityZeroOrOne:
		if !avail(0) {
			return nil, 0, nil
		}
		return rest[:1], 1, nil
	case arityOneOrMore, arityZeroOrMore:
		j := 0
		for avail(j) {
			j++
		}
		if ar.kind == arityOneOrMore && j < 1 {
			return nil, 0, &MissingValueError{Field: spec.displayName, Expected: 1, Got: 0}
		}
		return rest[:j], j, nil
	case arityUpTo:
		j := 0
		for j < ar.n && avail(j) && strings.Contains(rest[j], "=") {
			j++
		}
		return rest[:j], j, nil
	}
	return rest[:1], 1, nil
}

func (c *tokenConsumer) dispatch(
	spec *argSpec, rest []string, stops map[string]bool, base int,
) ([]string, error) {
	sub, err := grammarFor(spec.cmdType)
	if err != nil {
		return nil, err
	}
	subStops := stops
	if c.cfg.AllowMultipleCommands && len(c.g.commands) > 0 {
		subStops = make(map[string]bool, len(c.g.commands)+len(stops))
		for name := range c.g.commands {
			subStops[name] = true
		}
		for name := range stops {
			subStops[name] = true
		}
	}
	sc := newConsumer(sub, c.cfg, subValidators(c.validators, spec.dest))
	leftover, err := sc.run(rest, subStops, base)
	if err != nil {
		return nil, err
	}
	if err := sc.finalize(); err != nil {
		return nil, err
	}
	ptr := reflect.New(spec.cmdType)
	if err := sc.commit(ptr.Elem()); err != nil {
		return nil, err
	}
	c.subResults[spec.dest] = ptr
	c.extra = append(c.extra, sc.extra...)
	c.activeCmds++
	return leftover, nil
}

func subValidators(all map[string][]Validator, dest string) map[string][]Validator {
	if len(all) == 0 {
		return nil
	}
	prefix := dest + "."
	out := make(map[string][]Validator)
	for key, chain := range all {
		if strings.HasPrefix(key, prefix) {
			out[strings.TrimPrefix(key, prefix)] = chain
		}
	}
	return out
}

// merge converts one occurrence's value tokens and folds them into the
// accumulated value per the shape's merge rule.
func (c *tokenConsumer) merge(spec *argSpec, negated bool, vals []string, pos int) error {
	a := c.acc[spec.dest]
	if a == nil {
		a = &accum{}
		c.acc[spec.dest] = a
	}
	defer func() { a.count++ }()

	switch {
	case spec.counter:
		n := 0
		if a.val.IsValid() {
			n = int(a.val.Int())
		}
		a.val = reflect.ValueOf(n + 1)
		return nil

	case spec.shape == shapeScalar && spec.arity.kind == arityZero:
		// Plain bool flag: presence means true, the no- alias or an
		// inline value overrides.
		if len(vals) == 1 {
			v, err := c.convertOne(spec, vals[0], pos)
			if err != nil {
				return err
			}
			a.val = v
			return nil
		}
		a.val = reflect.ValueOf(!negated).Convert(c.scalarType(spec))
		return nil

	case spec.shape == shapeScalar || spec.shape == shapeUnion:
		if len(vals) == 0 {
			v, err := c.bareValue(spec, pos)
			if err != nil {
				return err
			}
			a.val = v
			return nil
		}
		v, err := c.convertSupplied(spec, vals[0], pos)
		if err != nil {
			return err
		}
		a.val = v
		return nil

	case spec.shape == shapeList:
		if !a.val.IsValid() {
			a.val = reflect.MakeSlice(spec.listType, 0, len(vals))
		}
		for j, raw := range vals {
			v, err := c.convertOne(spec, raw, pos+1+j)
			if err != nil {
				return err
			}
			a.val = reflect.Append(a.val, v)
		}
		return nil

	case spec.shape == shapeTupleVariadic:
		arr := reflect.New(spec.fieldType).Elem()
		for j, raw := range vals {
			v, err := c.convertWith(spec.elems[0], spec, raw, pos+1+j)
			if err != nil {
				return err
			}
			arr.Index(j).Set(v)
		}
		a.val = arr
		return nil

	case spec.shape == shapeTupleFixed:
		tup := reflect.New(spec.tupleType).Elem()
		convIdx := 0
		for fi := 0; fi < spec.tupleType.NumField() && convIdx < len(vals); fi++ {
			if !spec.tupleType.Field(fi).IsExported() {
				continue
			}
			v, err := c.convertWith(spec.tupleConvs[convIdx], spec, vals[convIdx], pos+1+convIdx)
			if err != nil {
				return err
			}
			tup.Field(fi).Set(v)
			convIdx++
		}
		a.val = tup
		return nil

	case spec.shape == shapeMap:
		if !a.val.IsValid() {
			a.val = reflect.MakeMap(spec.mapType)
		}
		for j, raw := range vals {
			if err := c.mergeKV(spec, a.val, raw, pos+1+j); err != nil {
				return err
			}
		}
		return nil

	case spec.shape == shapeListMap:
		if !a.val.IsValid() {
			a.val = reflect.MakeSlice(spec.listType, 0, 1)
		}
		m := reflect.MakeMap(spec.mapType)
		for j, raw := range vals {
			if err := c.mergeKV(spec, m, raw, pos+1+j); err != nil {
				return err
			}
		}
		a.val = reflect.Append(a.val, m)
		return nil
	}
	return nil
}

func (c *tokenConsumer) mergeKV(spec *argSpec, m reflect.Value, raw string, pos int) error {
	key, val, err := splitKV(raw)
	if err != nil {
		return &ConversionError{
			Field:    spec.displayName,
			Token:    raw,
			Position: pos,
			Type:     "key=value",
			Err:      err,
		}
	}
	kv, err := c.convertWith(spec.keyConv, spec, key, pos)
	if err != nil {
		return err
	}
	vv, err := c.convertWith(spec.valConv, spec, val, pos)
	if err != nil {
		return err
	}
	m.SetMapIndex(kv, vv)
	return nil
}

// bareValue resolves an occurrence that supplied no value token: the
// declared const, or true when a bool candidate is present.
func (c *tokenConsumer) bareValue(spec *argSpec, pos int) (reflect.Value, error) {
	if spec.constVal != nil {
		return c.convertOne(spec, *spec.constVal, pos)
	}
	if spec.hasBoolCandidate() {
		return reflect.ValueOf(true), nil
	}
	return reflect.Value{}, &MissingValueError{Field: spec.displayName, Expected: 1, Got: 0}
}

// convertOne tries the spec's candidate element types in declaration
// order; the first successful conversion wins. The ordering is the
// caller's responsibility, not a tie to resolve here.
func (c *tokenConsumer) convertOne(spec *argSpec, token string, pos int) (reflect.Value, error) {
	return c.convertAmong(spec, spec.elems, token, pos)
}

// convertSupplied converts a value token that directly followed the
// argument. In a union a bool candidate never competes for a supplied
// token: presence alone already means true, the token belongs to the
// other candidates.
func (c *tokenConsumer) convertSupplied(spec *argSpec, token string, pos int) (reflect.Value, error) {
	cands := spec.elems
	if spec.shape == shapeUnion && len(spec.elems) > 1 && spec.hasBoolCandidate() {
		cands = make([]converter, 0, len(spec.elems)-1)
		for _, conv := range spec.elems {
			if !conv.isBool {
				cands = append(cands, conv)
			}
		}
	}
	return c.convertAmong(spec, cands, token, pos)
}

func (c *tokenConsumer) convertAmong(
	spec *argSpec, cands []converter, token string, pos int,
) (reflect.Value, error) {
	var lastErr error
	for _, conv := range cands {
		v, err := conv.fn(token, spec.typeArgs)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	names := make([]string, len(cands))
	for i, conv := range cands {
		names[i] = conv.name
	}
	return reflect.Value{}, &ConversionError{
		Field:    spec.displayName,
		Token:    token,
		Position: pos,
		Type:     strings.Join(names, "|"),
		Err:      lastErr,
	}
}

func (c *tokenConsumer) convertWith(
	conv converter, spec *argSpec, token string, pos int,
) (reflect.Value, error) {
	v, err := conv.fn(token, spec.typeArgs)
	if err != nil {
		return reflect.Value{}, &ConversionError{
			Field:    spec.displayName,
			Token:    token,
			Position: pos,
			Type:     conv.name,
			Err:      err,
		}
	}
	return v, nil
}

func (c *tokenConsumer) scalarType(spec *argSpec) reflect.Type {
	if spec.pointer {
		return spec.fieldType.Elem()
	}
	return spec.fieldType
}

func elemTypeNames(spec *argSpec) string {
	names := make([]string, len(spec.elems))
	for i, conv := range spec.elems {
		names[i] = conv.name
	}
	return strings.Join(names, "|")
}

func (c *tokenConsumer) isSet(spec *argSpec) bool {
	a := c.acc[spec.dest]
	return a != nil && a.count > 0
}

// finalize runs the post-pass checks: exclusivity, required specs, then
// the validator pipeline over every merged value.
func (c *tokenConsumer) finalize() error {
	for _, grp := range c.g.groups {
		if !grp.exclusive {
			continue
		}
		var set []string
		for _, member := range grp.members {
			if c.isSet(member) {
				set = append(set, member.displayName)
			}
		}
		if len(set) > 1 {
			return &ValidationError{
				Field:     grp.name,
				Validator: "exclusive group",
				Err: fmt.Errorf(
					"arguments %s are mutually exclusive", strings.Join(set, ", "),
				),
			}
		}
	}

	var missing []string
	for _, spec := range c.g.specs {
		if spec.shape == shapeCommand {
			if _, active := c.subResults[spec.dest]; spec.required && !active {
				return &MissingCommandError{
					Field:    spec.fieldName,
					Commands: commandNames(c.g),
				}
			}
			continue
		}
		if spec.required && !c.isSet(spec) {
			missing = append(missing, spec.displayName)
		}
	}
	for _, grp := range c.g.groups {
		if !grp.exclusive || !grp.required {
			continue
		}
		any := false
		for _, member := range grp.members {
			if c.isSet(member) {
				any = true
				break
			}
		}
		if !any {
			missing = append(missing, grp.name)
		}
	}
	if len(missing) > 0 {
		return &MissingRequiredArgumentError{Missing: missing}
	}

	for _, spec := range c.g.specs {
		a := c.acc[spec.dest]
		if a == nil || !a.val.IsValid() {
			continue
		}
		for _, v := range c.validators[spec.dest] {
			if err := v.Validate(a.val.Interface()); err != nil {
				return &ValidationError{
					Field:     spec.displayName,
					Validator: fmt.Sprintf("%T", v),
					Err:       err,
				}
			}
		}
	}
	return nil
}

// commit writes merged values, then defaults for untouched specs, into
// the target struct. Nothing is written before the whole pass and the
// validator pipeline succeed.
func (c *tokenConsumer) commit(target reflect.Value) error {
	for _, spec := range c.g.specs {
		field := target.Field(spec.fieldIndex)
		if spec.shape == shapeCommand {
			if ptr, ok := c.subResults[spec.dest]; ok {
				field.Set(ptr)
			}
			continue
		}
		var v reflect.Value
		if a := c.acc[spec.dest]; a != nil && a.val.IsValid() {
			v = a.val
		} else if spec.defaultVal != nil {
			dv, err := convertDefault(spec)
			if err != nil {
				// Defaults are validated at grammar build.
				return err
			}
			v = dv
		} else {
			continue
		}
		if spec.pointer {
			ptr := reflect.New(v.Type())
			ptr.Elem().Set(v)
			field.Set(ptr)
			continue
		}
		field.Set(v)
	}
	if c.g.extraField >= 0 && c.cfg.ExtraArguments == ExtraAllow {
		field := target.Field(c.g.extraField)
		field.Set(reflect.ValueOf(append([]string(nil), c.extra...)))
	}
	return nil
}

func commandNames(g *grammar) []string {
	names := make([]string, 0, len(g.cmdList))
	for _, spec := range g.cmdList {
		names = append(names, spec.displayName)
	}
	return names
}

// convertDefault materializes a spec's declared default. List and tuple
// defaults are comma-separated, mapping defaults are comma-separated
// key=value pairs.
func convertDefault(spec *argSpec) (reflect.Value, error) {
	d := *spec.defaultVal
	if spec.counter {
		n, err := strconv.Atoi(d)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n), nil
	}
	switch spec.shape {
	case shapeScalar, shapeUnion:
		return tryConvert(spec.elems, d, spec.typeArgs)

	case shapeList:
		parts := splitList(d)
		s := reflect.MakeSlice(spec.listType, 0, len(parts))
		for _, part := range parts {
			v, err := tryConvert(spec.elems, part, spec.typeArgs)
			if err != nil {
				return reflect.Value{}, err
			}
			s = reflect.Append(s, v)
		}
		return s, nil

	case shapeTupleVariadic:
		parts := splitList(d)
		if len(parts) != spec.arity.n {
			return reflect.Value{}, fmt.Errorf(
				"tuple default needs %d values, got %d", spec.arity.n, len(parts),
			)
		}
		arr := reflect.New(spec.fieldType).Elem()
		for j, part := range parts {
			v, err := tryConvert(spec.elems, part, spec.typeArgs)
			if err != nil {
				return reflect.Value{}, err
			}
			arr.Index(j).Set(v)
		}
		return arr, nil

	case shapeTupleFixed:
		parts := splitList(d)
		if len(parts) != len(spec.tupleConvs) {
			return reflect.Value{}, fmt.Errorf(
				"tuple default needs %d values, got %d", len(spec.tupleConvs), len(parts),
			)
		}
		tup := reflect.New(spec.tupleType).Elem()
		convIdx := 0
		for fi := 0; fi < spec.tupleType.NumField() && convIdx < len(parts); fi++ {
			if !spec.tupleType.Field(fi).IsExported() {
				continue
			}
			v, err := tryConvert(
				[]converter{spec.tupleConvs[convIdx]}, parts[convIdx], spec.typeArgs,
			)
			if err != nil {
				return reflect.Value{}, err
			}
			tup.Field(fi).Set(v)
			convIdx++
		}
		return tup, nil

	case shapeMap, shapeListMap:
		m := reflect.MakeMap(spec.mapType)
		for _, part := range splitList(d) {
			key, val, err := splitKV(part)
			if err != nil {
				return reflect.Value{}, err
			}
			kv, err := tryConvert([]converter{spec.keyConv}, key, spec.typeArgs)
			if err != nil {
				return reflect.Value{}, err
			}
			vv, err := tryConvert([]converter{spec.valConv}, val, spec.typeArgs)
			if err != nil {
				return reflect.Value{}, err
			}
			m.SetMapIndex(kv, vv)
		}
		if spec.shape == shapeMap {
			return m, nil
		}
		s := reflect.MakeSlice(spec.listType, 0, 1)
		return reflect.Append(s, m), nil
	}
	return reflect.Value{}, fmt.Errorf("no default conversion for shape %v", spec.shape)
}

func tryConvert(
	elems []converter, token string, typeArgs map[string]string,
) (reflect.Value, error) {
	var lastErr error
	for _, conv := range elems {
		v, err := conv.fn(token, typeArgs)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate type for %q", token)
	}
	return reflect.Value{}, lastErr
}
