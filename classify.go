package argparser

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// shape is the normalized parsing category derived from a declared
// field type.
type shape int

const (
	shapeScalar shape = iota
	shapeUnion
	shapeList
	shapeTupleFixed
	shapeTupleVariadic
	shapeMap
	shapeListMap
	shapeCommand
)

func (s shape) String() string {
	switch s {
	case shapeScalar:
		return "scalar"
	case shapeUnion:
		return "union"
	case shapeList:
		return "list"
	case shapeTupleFixed:
		return "tuple"
	case shapeTupleVariadic:
		return "tuple"
	case shapeMap:
		return "mapping"
	case shapeListMap:
		return "mapping list"
	case shapeCommand:
		return "command"
	}
	return "unknown"
}

type arityKind int

const (
	arityZero arityKind = iota
	arityOne
	arityExact
	arityZeroOrOne
	arityOneOrMore
	arityZeroOrMore
	arityUpTo // at most n tokens, used by mapping batches
)

// arity is the number of raw tokens one occurrence consumes.
type arity struct {
	kind arityKind
	n    int
}

// converter turns one raw token into a typed value. Union fields carry
// several, tried in declaration order.
type converter struct {
	name   string
	isBool bool
	rt     reflect.Type
	fn     func(token string, typeArgs map[string]string) (reflect.Value, error)
}

// argSpec is the resolved, immutable description of one field. Built
// once per field during grammar construction.
type argSpec struct {
	dest        string
	fieldIndex  int
	fieldName   string
	names       []string // invocation aliases without dashes; empty => positional
	displayName string
	shape       shape
	elems       []converter // candidate element types; >1 only for union
	arity       arity
	multi       bool
	counter     bool
	required    bool
	defaultVal  *string
	constVal    *string
	usage       string
	group       string
	typeArgs    map[string]string

	fieldType reflect.Type
	pointer   bool // optional scalar declared as *T

	keyConv    converter   // mapping key
	valConv    converter   // mapping value
	mapType    reflect.Type
	listType   reflect.Type
	tupleType  reflect.Type
	tupleConvs []converter

	cmdType reflect.Type // nested command struct type
}

func (s *argSpec) isPositional() bool { return len(s.names) == 0 && s.shape != shapeCommand }

func (s *argSpec) hasBoolCandidate() bool {
	for _, c := range s.elems {
		if c.isBool {
			return true
		}
	}
	return false
}

var valueIface = reflect.TypeOf((*Value)(nil)).Elem()

func isValueType(rt reflect.Type) bool {
	return reflect.PointerTo(rt).Implements(valueIface)
}

// classify inspects a declared field type and resolves it into an
// argSpec: shape, element converters and arity. Returns
// UnsupportedTypeError when the type maps to no known shape and
// ConfigurationError when the metadata contradicts the shape.
func classify(sf reflect.StructField, meta fieldMeta) (*argSpec, error) {
	spec := &argSpec{
		dest:       meta.dest,
		fieldIndex: sf.Index[0],
		fieldName:  sf.Name,
		usage:      meta.usage,
		group:      meta.group,
		typeArgs:   meta.typeArgs,
		defaultVal: meta.defaultVal,
		constVal:   meta.constVal,
		fieldType:  sf.Type,
	}
	rt := sf.Type

	if meta.counter {
		if rt.Kind() != reflect.Int {
			return nil, &ConfigurationError{
				Field:  sf.Name,
				Reason: "counter fields must be of type int",
			}
		}
		spec.shape = shapeScalar
		spec.counter = true
		spec.arity = arity{kind: arityZero}
		return spec, finishNames(spec, meta)
	}

	switch {
	case isValueType(rt):
		conv, _ := leafConverter(rt)
		spec.shape = shapeScalar
		spec.elems = []converter{conv}
		spec.arity = arity{kind: arityOne}

	case rt.Kind() == reflect.Pointer:
		elem := rt.Elem()
		if !isValueType(elem) && elem.Kind() == reflect.Struct {
			spec.shape = shapeCommand
			spec.cmdType = elem
			return spec, finishNames(spec, meta)
		}
		conv, ok := leafConverter(elem)
		if !ok {
			return nil, &UnsupportedTypeError{Field: sf.Name, Type: rt}
		}
		spec.shape = shapeScalar
		spec.pointer = true
		spec.elems = []converter{conv}
		spec.arity = arity{kind: arityOne}
		if conv.isBool {
			spec.arity = arity{kind: arityZero}
		}

	case rt.Kind() == reflect.Interface:
		if rt.NumMethod() != 0 || len(meta.union) == 0 {
			return nil, &UnsupportedTypeError{Field: sf.Name, Type: rt}
		}
		elems, err := unionConverters(sf.Name, meta.union)
		if err != nil {
			return nil, err
		}
		spec.shape = shapeUnion
		spec.elems = elems
		spec.arity = arity{kind: arityOne}
		if spec.hasBoolCandidate() {
			// Presence alone means true; a direct value token is
			// converted with the remaining candidates.
			spec.arity = arity{kind: arityZeroOrOne}
		}

	case rt.Kind() == reflect.Slice:
		if err := classifySlice(rt, meta, spec); err != nil {
			return nil, err
		}

	case rt.Kind() == reflect.Array:
		conv, ok := leafConverter(rt.Elem())
		if !ok {
			return nil, &UnsupportedTypeError{Field: sf.Name, Type: rt}
		}
		n := rt.Len()
		if meta.nargs != "" && meta.nargs != strconv.Itoa(n) {
			return nil, &ConfigurationError{
				Field:  sf.Name,
				Reason: fmt.Sprintf("nargs %q conflicts with array length %d", meta.nargs, n),
			}
		}
		spec.shape = shapeTupleVariadic
		spec.elems = []converter{conv}
		spec.arity = arity{kind: arityExact, n: n}

	case rt.Kind() == reflect.Map:
		keyConv, valConv, err := mapConverters(sf.Name, rt)
		if err != nil {
			return nil, err
		}
		spec.shape = shapeMap
		spec.keyConv = keyConv
		spec.valConv = valConv
		spec.mapType = rt
		spec.arity = arity{kind: arityOne}
		spec.multi = true

	case rt.Kind() == reflect.Struct:
		if err := classifyTuple(rt, meta, spec); err != nil {
			return nil, err
		}

	default:
		conv, ok := leafConverter(rt)
		if !ok {
			return nil, &UnsupportedTypeError{Field: sf.Name, Type: rt}
		}
		spec.shape = shapeScalar
		spec.elems = []converter{conv}
		spec.arity = arity{kind: arityOne}
		if conv.isBool {
			spec.arity = arity{kind: arityZero}
		}
	}

	if err := applyConst(spec, meta); err != nil {
		return nil, err
	}
	switch {
	case meta.nargs == "":
	case spec.shape == shapeList, spec.shape == shapeListMap,
		spec.shape == shapeTupleFixed, spec.shape == shapeTupleVariadic:
	case meta.nargs == "?" && (spec.shape == shapeScalar || spec.shape == shapeUnion):
		if spec.arity.kind == arityOne {
			spec.arity = arity{kind: arityZeroOrOne}
		}
	default:
		return nil, &ConfigurationError{
			Field:  sf.Name,
			Reason: "nargs is only meaningful for list and tuple shapes",
		}
	}
	return spec, finishNames(spec, meta)
}

func classifySlice(rt reflect.Type, meta fieldMeta, spec *argSpec) error {
	elem := rt.Elem()
	spec.listType = rt

	if elem.Kind() == reflect.Map {
		keyConv, valConv, err := mapConverters(spec.fieldName, elem)
		if err != nil {
			return err
		}
		spec.shape = shapeListMap
		spec.keyConv = keyConv
		spec.valConv = valConv
		spec.mapType = elem
		spec.multi = true
		switch meta.nargs {
		case "":
			// One key=value token per occurrence; every occurrence
			// starts a new mapping.
			spec.arity = arity{kind: arityOne}
		default:
			n, err := strconv.Atoi(meta.nargs)
			if err != nil || n < 2 {
				return &ConfigurationError{
					Field:  spec.fieldName,
					Reason: "nargs for a mapping list must be an integer greater than 1",
				}
			}
			spec.arity = arity{kind: arityUpTo, n: n}
		}
		return nil
	}

	if elem.Kind() == reflect.Interface {
		if elem.NumMethod() != 0 || len(meta.union) == 0 {
			return &UnsupportedTypeError{Field: spec.fieldName, Type: rt}
		}
		elems, err := unionConverters(spec.fieldName, meta.union)
		if err != nil {
			return err
		}
		spec.elems = elems
	} else {
		conv, ok := leafConverter(elem)
		if !ok {
			return &UnsupportedTypeError{Field: spec.fieldName, Type: rt}
		}
		spec.elems = []converter{conv}
	}

	spec.shape = shapeList
	spec.multi = true
	switch meta.nargs {
	case "":
		spec.arity = arity{kind: arityOne}
	case "?":
		spec.arity = arity{kind: arityZeroOrOne}
	case "+":
		spec.arity = arity{kind: arityOneOrMore}
	case "*":
		spec.arity = arity{kind: arityZeroOrMore}
	default:
		n, err := strconv.Atoi(meta.nargs)
		if err != nil || n < 1 {
			return &ConfigurationError{
				Field:  spec.fieldName,
				Reason: fmt.Sprintf("invalid nargs %q", meta.nargs),
			}
		}
		spec.arity = arity{kind: arityExact, n: n}
	}
	return nil
}

func classifyTuple(rt reflect.Type, meta fieldMeta, spec *argSpec) error {
	var convs []converter
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		conv, ok := leafConverter(f.Type)
		if !ok {
			return &UnsupportedTypeError{Field: spec.fieldName, Type: rt}
		}
		convs = append(convs, conv)
	}
	if len(convs) == 0 {
		return &ConfigurationError{
			Field:  spec.fieldName,
			Reason: "tuple struct has no exported fields",
		}
	}
	if meta.nargs != "" && meta.nargs != strconv.Itoa(len(convs)) {
		return &ConfigurationError{
			Field: spec.fieldName,
			Reason: fmt.Sprintf(
				"nargs (%s) must equal the number of tuple fields (%d)",
				meta.nargs, len(convs),
			),
		}
	}
	spec.shape = shapeTupleFixed
	spec.tupleType = rt
	spec.tupleConvs = convs
	spec.arity = arity{kind: arityExact, n: len(convs)}
	return nil
}

func applyConst(spec *argSpec, meta fieldMeta) error {
	if meta.constVal == nil {
		return nil
	}
	switch spec.shape {
	case shapeScalar, shapeUnion:
		if len(spec.elems) == 1 && spec.elems[0].isBool {
			return &ConfigurationError{
				Field:  spec.fieldName,
				Reason: "const is not allowed for bool fields",
			}
		}
		// A bare flag stores the const; a following value token is
		// converted as usual.
		spec.arity = arity{kind: arityZeroOrOne}
		return nil
	default:
		return &ConfigurationError{
			Field:  spec.fieldName,
			Reason: "const is only allowed for scalar and union fields",
		}
	}
}

// finishNames decides whether the field is positional or optional and
// records its invocation aliases.
func finishNames(spec *argSpec, meta fieldMeta) error {
	if spec.shape == shapeCommand {
		name := meta.flag
		if name == "" {
			name = strings.ToLower(meta.name)
		}
		spec.names = append([]string{name}, meta.aliases...)
		spec.displayName = name
		spec.required = meta.required
		return nil
	}

	hasOpts := meta.flag != "" || meta.short != "" || len(meta.aliases) > 0
	boolish := spec.arity.kind == arityZero && !spec.counter
	positional := meta.positional ||
		(!hasOpts && !boolish && !spec.counter && !spec.pointer &&
			meta.defaultVal == nil && meta.constVal == nil && !spec.hasBoolCandidate())

	if positional {
		if meta.constVal != nil {
			return &ConfigurationError{
				Field:  spec.fieldName,
				Reason: "const is not allowed for positional arguments",
			}
		}
		spec.displayName = strings.ToLower(meta.dest)
		spec.required = meta.defaultVal == nil &&
			spec.arity.kind != arityZeroOrMore && spec.arity.kind != arityZeroOrOne
		return nil
	}

	long := meta.longName()
	spec.names = []string{long}
	if meta.short != "" {
		spec.names = append(spec.names, meta.short)
	}
	spec.names = append(spec.names, meta.aliases...)
	spec.displayName = "--" + long
	spec.required = meta.required
	return nil
}

// leafConverter resolves a plain leaf type to its token converter.
func leafConverter(rt reflect.Type) (converter, bool) {
	if isValueType(rt) {
		name := strings.ToLower(rt.Name())
		return converter{
			name: name,
			rt:   rt,
			fn: func(token string, typeArgs map[string]string) (reflect.Value, error) {
				pv := reflect.New(rt)
				if recv, ok := pv.Interface().(TypeArgsReceiver); ok && len(typeArgs) > 0 {
					if err := recv.ApplyTypeArgs(typeArgs); err != nil {
						return reflect.Value{}, err
					}
				}
				if err := pv.Interface().(Value).FromString(token); err != nil {
					return reflect.Value{}, err
				}
				return pv.Elem(), nil
			},
		}, true
	}

	if rt == reflect.TypeOf(time.Duration(0)) {
		return converter{
			name: "duration",
			rt:   rt,
			fn: func(token string, _ map[string]string) (reflect.Value, error) {
				d, err := time.ParseDuration(token)
				if err != nil {
					return reflect.Value{}, err
				}
				return reflect.ValueOf(d), nil
			},
		}, true
	}

	switch rt.Kind() {
	case reflect.String:
		return converter{
			name: "str",
			rt:   rt,
			fn: func(token string, _ map[string]string) (reflect.Value, error) {
				return reflect.ValueOf(token).Convert(rt), nil
			},
		}, true
	case reflect.Bool:
		return converter{
			name:   "bool",
			isBool: true,
			rt:     rt,
			fn: func(token string, _ map[string]string) (reflect.Value, error) {
				b, err := strconv.ParseBool(token)
				if err != nil {
					return reflect.Value{}, err
				}
				return reflect.ValueOf(b).Convert(rt), nil
			},
		}, true
	case reflect.Int, reflect.Int64:
		return converter{
			name: "int",
			rt:   rt,
			fn: func(token string, _ map[string]string) (reflect.Value, error) {
				i, err := strconv.ParseInt(token, 0, 64)
				if err != nil {
					return reflect.Value{}, err
				}
				return reflect.ValueOf(i).Convert(rt), nil
			},
		}, true
	case reflect.Float64:
		return converter{
			name: "float",
			rt:   rt,
			fn: func(token string, _ map[string]string) (reflect.Value, error) {
				f, err := strconv.ParseFloat(token, 64)
				if err != nil {
					return reflect.Value{}, err
				}
				return reflect.ValueOf(f).Convert(rt), nil
			},
		}, true
	}
	return converter{}, false
}

// unionConverters resolves the ordered candidate list of a union field.
// The declaration order is preserved: it is the tie-break order for
// conversion attempts.
func unionConverters(field string, names []string) ([]converter, error) {
	out := make([]converter, 0, len(names))
	for _, name := range names {
		rt, ok := unionCandidateType(name)
		if !ok {
			return nil, &ConfigurationError{
				Field:  field,
				Reason: fmt.Sprintf("unknown union candidate %q", name),
			}
		}
		conv, ok := leafConverter(rt)
		if !ok {
			return nil, &ConfigurationError{
				Field:  field,
				Reason: fmt.Sprintf("union candidate %q has no converter", name),
			}
		}
		conv.name = name
		out = append(out, conv)
	}
	return out, nil
}

func unionCandidateType(name string) (reflect.Type, bool) {
	switch name {
	case "int":
		return reflect.TypeOf(int(0)), true
	case "str", "string":
		return reflect.TypeOf(""), true
	case "float", "float64":
		return reflect.TypeOf(float64(0)), true
	case "bool":
		return reflect.TypeOf(false), true
	case "duration":
		return reflect.TypeOf(time.Duration(0)), true
	case "date":
		return reflect.TypeOf(Date{}), true
	case "time":
		return reflect.TypeOf(Clock{}), true
	case "datetime":
		return reflect.TypeOf(DateTime{}), true
	case "path":
		return reflect.TypeOf(Path{}), true
	case "url":
		return reflect.TypeOf(URL{}), true
	case "version":
		return reflect.TypeOf(Version{}), true
	}
	return nil, false
}

func mapConverters(field string, rt reflect.Type) (converter, converter, error) {
	keyKind := rt.Key().Kind()
	if keyKind != reflect.String && keyKind != reflect.Int {
		return converter{}, converter{}, &ConfigurationError{
			Field:  field,
			Reason: "mapping key type must be string or int",
		}
	}
	keyConv, _ := leafConverter(rt.Key())
	valConv, ok := leafConverter(rt.Elem())
	if !ok {
		return converter{}, converter{}, &UnsupportedTypeError{Field: field, Type: rt}
	}
	return keyConv, valConv, nil
}
