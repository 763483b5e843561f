package argparser

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Value is the single-token conversion contract for custom leaf types.
// A field of type T participates as a scalar when *T implements Value.
type Value interface {
	FromString(s string) error
}

// Exampler optionally supplies an example input shown in usage text.
type Exampler interface {
	Example() string
}

// TypeArgsReceiver is implemented by types that accept keyword
// constructor arguments from the field's typeargs tag. The same
// arguments are forwarded to validators that declare matching keyword
// names (see Validator).
type TypeArgsReceiver interface {
	ApplyTypeArgs(args map[string]string) error
}

// Date is a calendar-date argument. The "format" type-arg overrides the
// reference layout.
type Date struct {
	time.Time
	layout string
}

const defaultDateLayout = "2006-01-02"

func (d *Date) ApplyTypeArgs(args map[string]string) error {
	if f, ok := args["format"]; ok {
		d.layout = f
	}
	return nil
}

func (d *Date) FromString(s string) error {
	layout := d.layout
	if layout == "" {
		layout = defaultDateLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return fmt.Errorf("date %q does not match %q", s, layout)
	}
	d.Time = t
	return nil
}

func (d *Date) Example() string { return "2006-01-02" }

// Clock is a time-of-day argument ("time" in the usage text).
type Clock struct {
	time.Time
	layout string
}

const defaultClockLayout = "15:04:05"

func (c *Clock) ApplyTypeArgs(args map[string]string) error {
	if f, ok := args["format"]; ok {
		c.layout = f
	}
	return nil
}

func (c *Clock) FromString(s string) error {
	layout := c.layout
	if layout == "" {
		layout = defaultClockLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return fmt.Errorf("time %q does not match %q", s, layout)
	}
	c.Time = t
	return nil
}

func (c *Clock) Example() string { return "23:59:59" }

// DateTime is a combined date and time argument.
type DateTime struct {
	time.Time
	layout string
}

const defaultDateTimeLayout = "2006-01-02T15:04:05"

func (d *DateTime) ApplyTypeArgs(args map[string]string) error {
	if f, ok := args["format"]; ok {
		d.layout = f
	}
	return nil
}

func (d *DateTime) FromString(s string) error {
	layout := d.layout
	if layout == "" {
		layout = defaultDateTimeLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return fmt.Errorf("datetime %q does not match %q", s, layout)
	}
	d.Time = t
	return nil
}

func (d *DateTime) Example() string { return "2006-01-02T15:04:05" }

// Path is a filesystem-path argument. Conversion only stores the
// cleaned path; Open returns a handle whose closing is the caller's
// responsibility. The token "-" maps to stdin or stdout depending on
// the open mode ("mode" type-arg, one of "r", "w", "a").
type Path struct {
	Name string
	mode string
}

func (p *Path) ApplyTypeArgs(args map[string]string) error {
	if m, ok := args["mode"]; ok {
		switch m {
		case "r", "w", "a":
			p.mode = m
		default:
			return fmt.Errorf("invalid path mode %q", m)
		}
	}
	return nil
}

func (p *Path) FromString(s string) error {
	if s == "" {
		return errors.New("empty path")
	}
	if s == "-" {
		p.Name = s
		return nil
	}
	p.Name = filepath.Clean(s)
	return nil
}

func (p *Path) Open() (*os.File, error) {
	mode := p.mode
	if mode == "" {
		mode = "r"
	}
	if p.Name == "-" {
		if mode == "r" {
			return os.Stdin, nil
		}
		return os.Stdout, nil
	}
	switch mode {
	case "w":
		return os.Create(p.Name)
	case "a":
		return os.OpenFile(p.Name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	default:
		return os.Open(p.Name)
	}
}

func (p *Path) String() string  { return p.Name }
func (p *Path) Example() string { return "./path/to/file" }

// URL is a parsed-URL argument. The "schemes" type-arg restricts the
// accepted schemes ("|"-separated); "host_required" and "port_required"
// demand the respective components.
type URL struct {
	*url.URL
	schemes      []string
	hostRequired bool
	portRequired bool
}

func (u *URL) ApplyTypeArgs(args map[string]string) error {
	if s, ok := args["schemes"]; ok {
		u.schemes = strings.Split(s, "|")
	}
	if v, ok := args["host_required"]; ok {
		u.hostRequired = v == "true"
	}
	if v, ok := args["port_required"]; ok {
		u.portRequired = v == "true"
	}
	return nil
}

func (u *URL) FromString(s string) error {
	parsed, err := url.Parse(s)
	if err != nil {
		return err
	}
	if parsed.Host == "" {
		return errors.New("invalid url structure")
	}
	if len(u.schemes) > 0 {
		found := false
		for _, scheme := range u.schemes {
			if parsed.Scheme == scheme {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf(
				"invalid scheme %q, expected one of %s",
				parsed.Scheme, strings.Join(u.schemes, ", "),
			)
		}
	}
	if u.hostRequired && parsed.Hostname() == "" {
		return errors.New("hostname must be present")
	}
	if u.portRequired && parsed.Port() == "" {
		return errors.New("port must be present")
	}
	u.URL = parsed
	return nil
}

func (u *URL) Example() string { return "https://example.com:8080/path" }

// Version is a semantic-version argument.
type Version struct {
	*semver.Version
}

func (v *Version) FromString(s string) error {
	parsed, err := semver.NewVersion(s)
	if err != nil {
		return fmt.Errorf("invalid semantic version %q", s)
	}
	v.Version = parsed
	return nil
}

func (v *Version) Example() string { return "1.2.3" }
