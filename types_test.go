package argparser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var (
	// type checker
	_ Value            = &Date{}
	_ Value            = &Clock{}
	_ Value            = &DateTime{}
	_ Value            = &Path{}
	_ Value            = &URL{}
	_ Value            = &Version{}
	_ Value            = &File[any]{}
	_ TypeArgsReceiver = &Date{}
	_ TypeArgsReceiver = &URL{}
	_ TypeArgsReceiver = &File[any]{}
	_ Exampler         = &Version{}
)

func TestDateType(t *testing.T) {
	var d Date
	assert.NoError(t, d.FromString("2024-02-29"))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d.Time)
	assert.Error(t, d.FromString("02/29/2024"))

	var custom Date
	assert.NoError(t, custom.ApplyTypeArgs(map[string]string{"format": "02/01/2006"}))
	assert.NoError(t, custom.FromString("29/02/2024"))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), custom.Time)
}

func TestClockAndDateTimeTypes(t *testing.T) {
	var c Clock
	assert.NoError(t, c.FromString("23:59:01"))
	assert.Equal(t, 23, c.Hour())
	assert.Error(t, c.FromString("25:00:00"))

	var dt DateTime
	assert.NoError(t, dt.FromString("2024-06-15T10:30:00"))
	assert.Equal(t, time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC), dt.Time)
}

func TestPathType(t *testing.T) {
	var p Path
	assert.NoError(t, p.FromString("a//b/../c"))
	assert.Equal(t, filepath.Clean("a//b/../c"), p.Name)
	assert.Error(t, p.FromString(""))

	var dash Path
	assert.NoError(t, dash.FromString("-"))
	f, err := dash.Open()
	assert.NoError(t, err)
	assert.Equal(t, os.Stdin, f)

	var w Path
	assert.NoError(t, w.ApplyTypeArgs(map[string]string{"mode": "w"}))
	assert.NoError(t, w.FromString("-"))
	f, err = w.Open()
	assert.NoError(t, err)
	assert.Equal(t, os.Stdout, f)

	var bad Path
	assert.Error(t, bad.ApplyTypeArgs(map[string]string{"mode": "x"}))
}

func TestPathOpenRealFile(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "out.txt")

	var w Path
	assert.NoError(t, w.ApplyTypeArgs(map[string]string{"mode": "w"}))
	assert.NoError(t, w.FromString(name))
	f, err := w.Open()
	if assert.NoError(t, err) {
		_, err = f.WriteString("hello")
		assert.NoError(t, err)
		assert.NoError(t, f.Close())
	}

	var r Path
	assert.NoError(t, r.FromString(name))
	f, err = r.Open()
	if assert.NoError(t, err) {
		content := make([]byte, 5)
		_, err = f.Read(content)
		assert.NoError(t, err)
		assert.Equal(t, "hello", string(content))
		assert.NoError(t, f.Close())
	}
}

func TestURLType(t *testing.T) {
	var u URL
	assert.NoError(t, u.FromString("https://example.com:8080/path"))
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "example.com", u.Hostname())
	assert.Equal(t, "8080", u.Port())

	assert.Error(t, u.FromString("not a url at all"))

	var restricted URL
	assert.NoError(t, restricted.ApplyTypeArgs(map[string]string{
		"schemes":       "http|https",
		"port_required": "true",
	}))
	assert.NoError(t, restricted.FromString("http://example.com:80"))
	assert.Error(t, restricted.FromString("ftp://example.com:80"))
	assert.Error(t, restricted.FromString("http://example.com"))
}

func TestVersionType(t *testing.T) {
	var v Version
	assert.NoError(t, v.FromString("1.2.3-rc.1"))
	assert.Equal(t, uint64(1), v.Major())
	assert.Equal(t, "rc.1", v.Prerelease())
	assert.Error(t, v.FromString("not-a-version"))
}

func TestTypeArgsForwardedThroughTags(t *testing.T) {
	var s struct {
		Since Date `flag:"since" typeargs:"format=02/01/2006"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"--since", "15/06/2024"}))
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), s.Since.Time)

	err := p.ParseArgs([]string{"--since", "2024-06-15"})
	var convErr *ConversionError
	assert.ErrorAs(t, err, &convErr)
}

func TestVersionAsArgument(t *testing.T) {
	var s struct {
		Target Version `flag:"target"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"--target", "2.0.0"}))
	assert.Equal(t, uint64(2), s.Target.Major())
}
