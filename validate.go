package argparser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// Validator checks a converted argument value after the whole token
// stream has been consumed. The first failing validator aborts the
// parse; later validators on the same field never run.
type Validator interface {
	Validate(value any) error
}

// TypeArgAware validators receive a field's declared type arguments
// before the parse runs. Only the names listed by TypeArgNames are
// forwarded; a validator that wants none stays a plain Validator.
type TypeArgAware interface {
	Validator
	TypeArgNames() []string
	ApplyTypeArgs(args map[string]string) error
}

// LengthValidator bounds the length of a string, slice or map value.
// A zero bound is unset.
type LengthValidator struct {
	Min int
	Max int
}

func (v *LengthValidator) Validate(value any) error {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
	default:
		return fmt.Errorf("expected a sized value, found %T", value)
	}
	n := rv.Len()
	if v.Min > 0 && v.Max > 0 && (n < v.Min || n > v.Max) {
		return fmt.Errorf("length should be between %d and %d", v.Min, v.Max)
	}
	if v.Min > 0 && n < v.Min {
		return fmt.Errorf("length should be greater than %d", v.Min)
	}
	if v.Max > 0 && n > v.Max {
		return fmt.Errorf("length should be less than %d", v.Max)
	}
	return nil
}

// RangeValidator bounds a numeric value. A zero bound is unset.
type RangeValidator struct {
	Min float64
	Max float64
}

func (v *RangeValidator) Validate(value any) error {
	var f float64
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(rv.Int())
	case reflect.Float32, reflect.Float64:
		f = rv.Float()
	default:
		return fmt.Errorf("expected a numeric value, found %T", value)
	}
	if v.Min != 0 && v.Max != 0 && (f < v.Min || f > v.Max) {
		return fmt.Errorf("value should be between %v and %v", v.Min, v.Max)
	}
	if v.Min != 0 && f < v.Min {
		return fmt.Errorf("value should be greater than %v", v.Min)
	}
	if v.Max != 0 && f > v.Max {
		return fmt.Errorf("value should be less than %v", v.Max)
	}
	return nil
}

// RegexValidator requires the whole string to match Pattern.
type RegexValidator struct {
	Pattern string
}

func (v *RegexValidator) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected a string value, found %T", value)
	}
	re, err := regexp.Compile(`\A(?:` + v.Pattern + `)\z`)
	if err != nil {
		return err
	}
	if !re.MatchString(s) {
		return fmt.Errorf("%q does not match expression %q", s, v.Pattern)
	}
	return nil
}

// DateTimeRangeValidator bounds a Date, Clock, DateTime or time.Time
// value. Min and Max are parsed with Format, which defaults per value
// kind and is filled from the field's "format" type argument when one
// is declared.
type DateTimeRangeValidator struct {
	Min    string
	Max    string
	Format string
}

func (v *DateTimeRangeValidator) TypeArgNames() []string { return []string{"format"} }

func (v *DateTimeRangeValidator) ApplyTypeArgs(args map[string]string) error {
	if f, ok := args["format"]; ok && v.Format == "" {
		v.Format = f
	}
	return nil
}

func (v *DateTimeRangeValidator) Validate(value any) error {
	var t time.Time
	layout := v.Format
	switch x := value.(type) {
	case Date:
		t = x.Time
		if layout == "" {
			layout = defaultDateLayout
		}
	case Clock:
		t = x.Time
		if layout == "" {
			layout = defaultClockLayout
		}
	case DateTime:
		t = x.Time
		if layout == "" {
			layout = defaultDateTimeLayout
		}
	case time.Time:
		t = x
		if layout == "" {
			layout = defaultDateTimeLayout
		}
	default:
		return fmt.Errorf("expected a date or time value, found %T", value)
	}

	var minT, maxT time.Time
	if v.Min != "" {
		m, err := time.Parse(layout, v.Min)
		if err != nil {
			return fmt.Errorf("bad range bound %q: %w", v.Min, err)
		}
		minT = m
	}
	if v.Max != "" {
		m, err := time.Parse(layout, v.Max)
		if err != nil {
			return fmt.Errorf("bad range bound %q: %w", v.Max, err)
		}
		maxT = m
	}
	if !minT.IsZero() && !maxT.IsZero() && (t.Before(minT) || t.After(maxT)) {
		return fmt.Errorf("should be between %s and %s", v.Min, v.Max)
	}
	if !minT.IsZero() && t.Before(minT) {
		return fmt.Errorf("should be after %s", v.Min)
	}
	if !maxT.IsZero() && t.After(maxT) {
		return fmt.Errorf("should be before %s", v.Max)
	}
	return nil
}

// PathValidator checks filesystem properties of a Path or string value.
// The stdin/stdout placeholder "-" always passes.
type PathValidator struct {
	IsAbsolute bool
	IsDir      bool
	IsFile     bool
	Exists     bool
}

func (v *PathValidator) Validate(value any) error {
	var name string
	switch x := value.(type) {
	case Path:
		name = x.Name
	case string:
		name = x
	default:
		return fmt.Errorf("expected a path value, found %T", value)
	}
	if name == "-" {
		return nil
	}
	if v.IsAbsolute && !filepath.IsAbs(name) {
		return fmt.Errorf("%q is not an absolute path", name)
	}
	info, statErr := os.Stat(name)
	if v.IsDir {
		if statErr != nil || !info.IsDir() {
			return fmt.Errorf("%q is not a valid directory", name)
		}
	}
	if v.IsFile {
		if statErr != nil || info.IsDir() {
			return fmt.Errorf("%q is not a valid file", name)
		}
	}
	if v.Exists && statErr != nil {
		return fmt.Errorf("%q does not exist", name)
	}
	return nil
}

// URLValidator checks scheme and authority components of a URL or
// string value.
type URLValidator struct {
	AllowedSchemes []string
	HostRequired   bool
	PortRequired   bool
}

func (v *URLValidator) Validate(value any) error {
	var u URL
	switch x := value.(type) {
	case URL:
		u = x
	case string:
		if err := u.FromString(x); err != nil {
			return err
		}
	default:
		return fmt.Errorf("expected a url value, found %T", value)
	}
	if u.URL == nil {
		return errors.New("empty url")
	}
	if len(v.AllowedSchemes) > 0 {
		ok := false
		for _, scheme := range v.AllowedSchemes {
			if strings.EqualFold(scheme, u.Scheme) {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf(
				"scheme should be one of %s", strings.Join(v.AllowedSchemes, ", "),
			)
		}
	}
	if v.HostRequired && u.Hostname() == "" {
		return fmt.Errorf("%q has no host component", u.String())
	}
	if v.PortRequired && u.Port() == "" {
		return fmt.Errorf("%q has no port component", u.String())
	}
	return nil
}
