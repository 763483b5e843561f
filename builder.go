package argparser

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
)

// Option configures a Parser at construction.
type Option func(*parserOptions)

type parserOptions struct {
	cfg        Config
	validators map[string][]Validator
}

// WithConfig replaces the default parser configuration.
func WithConfig(cfg Config) Option {
	return func(o *parserOptions) { o.cfg = cfg }
}

// WithValidators attaches validators to the field addressed by dest.
// Nested command fields are addressed with a dotted path, e.g.
// "Commit.Message".
func WithValidators(dest string, vs ...Validator) Option {
	return func(o *parserOptions) {
		if o.validators == nil {
			o.validators = make(map[string][]Validator)
		}
		o.validators[dest] = append(o.validators[dest], vs...)
	}
}

// Parser parses token streams into *T. Construction resolves the full
// grammar, so declaration mistakes surface before any token is read.
// A Parser is safe for concurrent and repeated use; each ParseArgs call
// starts from a fresh instance of T.
type Parser[T any] struct {
	target     *T
	g          *grammar
	cfg        Config
	validators map[string][]Validator
	usage      string
	extra      []string
	checkFn    func(T) error
}

// New builds a Parser over the argument struct u points at.
func New[T any](u *T, opts ...Option) (*Parser[T], error) {
	if u == nil {
		return nil, &ConfigurationError{
			Reason: "argument definition must be a non-nil struct pointer",
		}
	}
	var o parserOptions
	for _, opt := range opts {
		opt(&o)
	}

	rt := reflect.TypeOf(*u)
	g, err := grammarFor(rt)
	if err != nil {
		return nil, err
	}
	if o.cfg.AllowMultipleCommands {
		if err := g.checkSiblingOptions(); err != nil {
			return nil, err
		}
	}
	if err := wireValidatorTypeArgs(g, o.validators); err != nil {
		return nil, err
	}

	return &Parser[T]{
		target:     u,
		g:          g,
		cfg:        o.cfg,
		validators: o.validators,
		usage:      makeUsageText(g, o.cfg),
	}, nil
}

// Build is New for the common path: it panics on declaration errors,
// which are programming mistakes, not runtime conditions.
func Build[T any](u *T, opts ...Option) *Parser[T] {
	p, err := New(u, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Checker registers a post-parse check over the populated struct.
func (p *Parser[T]) Checker(fn func(T) error) *Parser[T] {
	p.checkFn = fn
	return p
}

// Parse consumes os.Args, printing usage and exiting on failure or on
// an explicit help request.
func (p *Parser[T]) Parse() T {
	if err := p.ParseArgs(os.Args[1:]); err != nil {
		if errors.Is(err, ErrHelp) {
			fmt.Print(p.usage)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
		fmt.Fprint(os.Stderr, p.usage)
		os.Exit(2)
	}
	return *p.target
}

// ParseArgs consumes the given tokens. The target struct is written
// only when the whole pass, including validation, succeeds; a failed
// call leaves it untouched, and repeated calls with the same tokens
// produce the same result.
func (p *Parser[T]) ParseArgs(args []string) error {
	c := newConsumer(p.g, p.cfg, p.validators)
	if _, err := c.run(args, nil, 0); err != nil {
		return err
	}
	if err := c.finalize(); err != nil {
		return err
	}
	fresh := reflect.New(p.g.typ).Elem()
	if err := c.commit(fresh); err != nil {
		return err
	}
	if p.checkFn != nil {
		if err := p.checkFn(fresh.Interface().(T)); err != nil {
			return err
		}
	}
	reflect.ValueOf(p.target).Elem().Set(fresh)
	p.extra = append(p.extra[:0], c.extra...)
	return nil
}

// ParseLine splits s on whitespace and parses the result.
func (p *Parser[T]) ParseLine(s string) error {
	return p.ParseArgs(strings.Fields(s))
}

// Usage returns the rendered help text.
func (p *Parser[T]) Usage() string { return p.usage }

// Extra returns the unrecognized tokens of the last successful parse.
// Only populated under the ExtraAllow policy.
func (p *Parser[T]) Extra() []string { return p.extra }

// wireValidatorTypeArgs forwards each field's declared type arguments
// to the validators that ask for them by name.
func wireValidatorTypeArgs(g *grammar, validators map[string][]Validator) error {
	for dest, chain := range validators {
		spec, err := findSpec(g, dest)
		if err != nil {
			return err
		}
		for _, v := range chain {
			aware, ok := v.(TypeArgAware)
			if !ok {
				continue
			}
			subset := make(map[string]string)
			for _, name := range aware.TypeArgNames() {
				if val, present := spec.typeArgs[name]; present {
					subset[name] = val
				}
			}
			if len(subset) == 0 {
				continue
			}
			if err := aware.ApplyTypeArgs(subset); err != nil {
				return &ConfigurationError{
					Field:  spec.fieldName,
					Reason: fmt.Sprintf("validator %T rejected type args: %v", v, err),
				}
			}
		}
	}
	return nil
}

func findSpec(g *grammar, dest string) (*argSpec, error) {
	head, rest, nested := strings.Cut(dest, ".")
	for _, spec := range g.specs {
		if spec.dest != head {
			continue
		}
		if !nested {
			return spec, nil
		}
		if spec.shape != shapeCommand {
			return nil, &ConfigurationError{
				Field:  spec.fieldName,
				Reason: fmt.Sprintf("%q is not a command, cannot address %q", head, dest),
			}
		}
		sub, err := grammarFor(spec.cmdType)
		if err != nil {
			return nil, err
		}
		return findSpec(sub, rest)
	}
	return nil, &ConfigurationError{
		Reason: fmt.Sprintf("no field with dest %q", head),
	}
}
