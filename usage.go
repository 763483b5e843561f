package argparser

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

func makeUsageText(g *grammar, cfg Config) string {
	prefix := cfg.usagePrefix()
	optionList := makeOptionUsageList(g)
	argList := makeArgUsageList(g)
	cmdList := makeCmdUsageList(g)
	groupList := makeGroupUsageList(g)

	usage := fmt.Sprintf("Usage: %s [OPTIONS]", prefix)
	for _, spec := range g.positionals {
		switch {
		case !spec.required:
			usage = fmt.Sprintf("%s [%s]", usage, spec.displayName)
		case spec.arity.kind == arityOneOrMore:
			usage = fmt.Sprintf("%s <%s>..", usage, spec.displayName)
		default:
			usage = fmt.Sprintf("%s <%s>", usage, spec.displayName)
		}
	}
	if len(g.cmdList) > 0 {
		usage = fmt.Sprintf("%s [%s]", usage, cfg.commandMetavar())
	}
	usage += "\n"

	if len(argList) > 0 {
		usage += fmt.Sprintf(
			"\nArguments:\n%s\n", strings.Join(fmap(argList, shiftFour), "\n"),
		)
	}
	if len(cmdList) > 0 {
		usage += fmt.Sprintf(
			"\nCommands:\n%s\n", strings.Join(fmap(cmdList, shiftFour), "\n"),
		)
	}
	// options always include --help, thus never empty
	usage += fmt.Sprintf(
		"\nOptions:\n%s\n", strings.Join(fmap(optionList, shiftFour), "\n"),
	)
	if len(groupList) > 0 {
		usage += fmt.Sprintf(
			"\nGroups:\n%s\n", strings.Join(fmap(groupList, shiftFour), "\n"),
		)
	}
	if len(cmdList) > 0 {
		usage += fmt.Sprintf(
			"\nRun `%s %s --help` to print the help message of a command\n",
			prefix, cfg.commandMetavar(),
		)
	}
	return usage
}

// optionSpecs returns the option specs sorted by long name, each
// appearing once no matter how many aliases it registered.
func optionSpecs(g *grammar) []*argSpec {
	seen := make(map[*argSpec]bool)
	var out []*argSpec
	for _, ref := range g.options {
		if !seen[ref.spec] {
			seen[ref.spec] = true
			out = append(out, ref.spec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].names[0] < out[j].names[0] })
	return out
}

func makeOptionUsageList(g *grammar) []string {
	const helpLine = "-h, --help"
	specs := optionSpecs(g)

	heads := make([]string, len(specs))
	for i, spec := range specs {
		heads[i] = optionHead(spec)
	}
	maxLen := len(helpLine)
	for _, h := range heads {
		maxLen = maxInt(maxLen, len(h))
	}

	list := []string{
		fmt.Sprintf("%s  %s", appendSpacesToLength(helpLine, maxLen), "print this message"),
	}
	for i, spec := range specs {
		line := appendSpacesToLength(heads[i], maxLen)
		if spec.usage != "" {
			line = fmt.Sprintf("%s  %s", line, spec.usage)
		}
		if extra, ok := makeDefaultOrExample(spec); ok {
			line = fmt.Sprintf("%s  %s", line, extra)
		}
		list = append(list, line)
	}
	return list
}

// optionHead renders the invocation column of one option: aliases,
// negated form for plain bool flags, and a value metavar.
func optionHead(spec *argSpec) string {
	var parts []string
	for _, name := range spec.names {
		if len(name) == 1 {
			parts = append(parts, "-"+name)
		} else {
			parts = append(parts, "--"+name)
		}
	}
	if spec.shape == shapeScalar && len(spec.elems) == 1 && spec.elems[0].isBool && !spec.counter {
		parts = append(parts, "--no-"+spec.names[0])
	}
	head := strings.Join(parts, ", ")
	if mv := metavar(spec); mv != "" {
		head = fmt.Sprintf("%s <%s>", head, mv)
	}
	if spec.multi {
		head += ".."
	}
	return head
}

// metavar names the value tokens an occurrence expects.
func metavar(spec *argSpec) string {
	switch spec.shape {
	case shapeMap, shapeListMap:
		return "key=value"
	case shapeTupleFixed, shapeTupleVariadic:
		names := make([]string, 0, spec.arity.n)
		if spec.shape == shapeTupleFixed {
			for _, conv := range spec.tupleConvs {
				names = append(names, conv.name)
			}
		} else {
			for i := 0; i < spec.arity.n; i++ {
				names = append(names, spec.elems[0].name)
			}
		}
		return strings.Join(names, " ")
	default:
		if spec.counter || spec.arity.kind == arityZero {
			return ""
		}
		return elemTypeNames(spec)
	}
}

func makeArgUsageList(g *grammar) []string {
	var list []string
	maxLen := 0
	for _, spec := range g.positionals {
		maxLen = maxInt(maxLen, 2+len(spec.displayName))
	}
	for _, spec := range g.positionals {
		head := fmt.Sprintf("<%s>", spec.displayName)
		if !spec.required || spec.multi {
			head = fmt.Sprintf("[%s]", spec.displayName)
		}
		line := appendSpacesToLength(head, maxLen)
		if spec.usage != "" {
			line = fmt.Sprintf("%s  %s", line, spec.usage)
		}
		if extra, ok := makeDefaultOrExample(spec); ok {
			line = fmt.Sprintf("%s  %s", line, extra)
		}
		list = append(list, line)
	}
	return list
}

func makeCmdUsageList(g *grammar) []string {
	var list []string
	maxLen := 0
	for _, spec := range g.cmdList {
		maxLen = maxInt(maxLen, len(spec.displayName))
	}
	for _, spec := range g.cmdList {
		line := spec.displayName
		if spec.usage != "" {
			line = fmt.Sprintf(
				"%s  %s", appendSpacesToLength(spec.displayName, maxLen), spec.usage,
			)
		}
		list = append(list, line)
	}
	return list
}

func makeGroupUsageList(g *grammar) []string {
	var list []string
	for _, grp := range g.groups {
		names := make([]string, len(grp.members))
		for i, member := range grp.members {
			names[i] = member.displayName
		}
		var marks []string
		if grp.exclusive {
			marks = append(marks, "mutually exclusive")
		}
		if grp.required {
			marks = append(marks, "required")
		}
		line := fmt.Sprintf("%s: %s", grp.name, strings.Join(names, ", "))
		if len(marks) > 0 {
			line = fmt.Sprintf("%s  (%s)", line, strings.Join(marks, ", "))
		}
		list = append(list, line)
	}
	return list
}

func makeDefaultOrExample(spec *argSpec) (string, bool) {
	if spec.defaultVal != nil {
		return fmt.Sprintf(`[default: "%s"]`, *spec.defaultVal), true
	}
	if eg := exampleFor(spec); eg != "" {
		return fmt.Sprintf(`[example: "%s"]`, eg), true
	}
	return "", false
}

// exampleFor asks the element type for a sample input when it offers
// one.
func exampleFor(spec *argSpec) string {
	if len(spec.elems) != 1 || spec.elems[0].rt == nil {
		return ""
	}
	pv := reflect.New(spec.elems[0].rt)
	if ex, ok := pv.Interface().(Exampler); ok {
		return ex.Example()
	}
	return ""
}

func shiftFour(s string) string {
	const fourSpace = "    "
	return fourSpace + s
}

func fmap(ss []string, f func(string) string) []string {
	for i, s := range ss {
		ss[i] = f(s)
	}
	return ss
}

func appendSpacesToLength(s string, toLength int) string {
	needSpace := toLength - len(s)
	for i := 0; i < needSpace; i++ {
		s += " "
	}
	return s
}

func maxInt(a, b int) int {
	if a < b {
		return b
	}
	return a
}
