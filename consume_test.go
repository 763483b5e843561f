package argparser

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestScalarOptions(t *testing.T) {
	var s struct {
		Num   int     `flag:"n"`
		Rate  float64 `flag:"rate" default:"0.5"`
		Name  string  `flag:"name"`
		Quiet bool    `flag:"q"`
	}
	p := Build(&s)

	err := p.ParseArgs([]string{"-n", "42", "--name", "abc", "-q"})
	assert.NoError(t, err)
	assert.Equal(t, 42, s.Num)
	assert.Equal(t, 0.5, s.Rate)
	assert.Equal(t, "abc", s.Name)
	assert.True(t, s.Quiet)
}

func TestScalarLastOccurrenceWins(t *testing.T) {
	var s struct {
		Num int `flag:"n" default:"0"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"-n", "1", "-n", "2"}))
	assert.Equal(t, 2, s.Num)
}

func TestInlineValue(t *testing.T) {
	var s struct {
		Num  int  `flag:"n" default:"0"`
		Flag bool `flag:"f"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"--n=7", "--f=false"}))
	assert.Equal(t, 7, s.Num)
	assert.False(t, s.Flag)
}

func TestBoolNegation(t *testing.T) {
	var s struct {
		Color bool `flag:"color" default:"true"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"--no-color"}))
	assert.False(t, s.Color)
	assert.NoError(t, p.ParseArgs([]string{"--color"}))
	assert.True(t, s.Color)
}

func TestOptionalPointerScalar(t *testing.T) {
	var s struct {
		Limit *int `flag:"limit"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{}))
	assert.Nil(t, s.Limit)
	assert.NoError(t, p.ParseArgs([]string{"--limit", "9"}))
	if assert.NotNil(t, s.Limit) {
		assert.Equal(t, 9, *s.Limit)
	}
}

func TestCounter(t *testing.T) {
	var s struct {
		Verbose int `flag:"v" counter:"true"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"-v", "-v", "-v"}))
	assert.Equal(t, 3, s.Verbose)
}

func TestConstValue(t *testing.T) {
	var s struct {
		Level string `flag:"opt" const:"medium" default:"off"`
	}
	p := Build(&s)

	assert.NoError(t, p.ParseArgs([]string{}))
	assert.Equal(t, "off", s.Level)

	assert.NoError(t, p.ParseArgs([]string{"--opt"}))
	assert.Equal(t, "medium", s.Level)

	assert.NoError(t, p.ParseArgs([]string{"--opt", "high"}))
	assert.Equal(t, "high", s.Level)
}

func TestUnionCandidateOrder(t *testing.T) {
	cases := []struct {
		about string
		parse func(tokens []string) (any, error)
		input []string
		exp   any
	}{{
		"int before str converts digits to int",
		func(tokens []string) (any, error) {
			var s struct {
				ID any `flag:"id" union:"int,str"`
			}
			err := Build(&s).ParseArgs(tokens)
			return s.ID, err
		},
		[]string{"--id", "42"},
		42,
	}, {
		"str before int captures digits as string",
		func(tokens []string) (any, error) {
			var s struct {
				ID any `flag:"id2" union:"str,int"`
			}
			err := Build(&s).ParseArgs(tokens)
			return s.ID, err
		},
		[]string{"--id2", "42"},
		"42",
	}, {
		"fallthrough to a later candidate",
		func(tokens []string) (any, error) {
			var s struct {
				ID any `flag:"id3" union:"int,str"`
			}
			err := Build(&s).ParseArgs(tokens)
			return s.ID, err
		},
		[]string{"--id3", "abc"},
		"abc",
	}}
	for _, c := range cases {
		got, err := c.parse(c.input)
		assert.NoError(t, err, c.about)
		assert.Equal(t, c.exp, got, c.about)
	}
}

func TestUnionWithBoolCandidate(t *testing.T) {
	var s struct {
		Cache any `flag:"cache" union:"bool,int"`
	}
	p := Build(&s)

	assert.NoError(t, p.ParseArgs([]string{"--cache"}))
	assert.Equal(t, true, s.Cache)

	assert.NoError(t, p.ParseArgs([]string{"--cache", "128"}))
	assert.Equal(t, 128, s.Cache)

	// A supplied token goes to the non-bool candidates even when bool
	// would accept it.
	assert.NoError(t, p.ParseArgs([]string{"--cache", "1"}))
	assert.Equal(t, 1, s.Cache)

	assert.NoError(t, p.ParseArgs([]string{"--cache=0"}))
	assert.Equal(t, 0, s.Cache)

	err := p.ParseArgs([]string{"--cache", "true"})
	var convErr *ConversionError
	if assert.ErrorAs(t, err, &convErr) {
		assert.Equal(t, "int", convErr.Type)
	}

	assert.NoError(t, p.ParseArgs([]string{}))
	assert.Nil(t, s.Cache)
}

func TestUnionNoCandidateMatches(t *testing.T) {
	var s struct {
		N any `flag:"num" union:"int,float"`
	}
	err := Build(&s).ParseArgs([]string{"--num", "abc"})
	var convErr *ConversionError
	if assert.ErrorAs(t, err, &convErr) {
		assert.Equal(t, "abc", convErr.Token)
		assert.Equal(t, "int|float", convErr.Type)
	}
}

func TestListAppendAcrossOccurrences(t *testing.T) {
	var s struct {
		Files []string `flag:"file"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"--file", "a.txt", "--file", "b.txt"}))
	assert.Equal(t, []string{"a.txt", "b.txt"}, s.Files)
}

func TestListNargsBatch(t *testing.T) {
	var s struct {
		Point []int `flag:"p" nargs:"3"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"-p", "1", "2", "3", "-p", "4", "5", "6"}))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, s.Point)
}

func TestListNargsVariadic(t *testing.T) {
	var s struct {
		Files []string `flag:"file" nargs:"+"`
		Tail  bool     `flag:"t"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"--file", "a", "b", "c", "-t"}))
	assert.Equal(t, []string{"a", "b", "c"}, s.Files)
	assert.True(t, s.Tail)

	err := p.ParseArgs([]string{"--file", "-t"})
	var missing *MissingValueError
	assert.ErrorAs(t, err, &missing)
}

func TestTupleArray(t *testing.T) {
	var s struct {
		Rect [4]int `flag:"rect"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"--rect", "1", "2", "3", "4"}))
	assert.Equal(t, [4]int{1, 2, 3, 4}, s.Rect)

	err := p.ParseArgs([]string{"--rect", "1", "2"})
	var missing *MissingValueError
	if assert.ErrorAs(t, err, &missing) {
		assert.Equal(t, 4, missing.Expected)
	}
}

func TestTupleStruct(t *testing.T) {
	type point struct {
		Label string
		X     int
		Y     float64
	}
	var s struct {
		At point `flag:"at"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"--at", "origin", "3", "1.5"}))
	assert.Equal(t, point{Label: "origin", X: 3, Y: 1.5}, s.At)
}

func TestMappingUpsert(t *testing.T) {
	var s struct {
		Env map[string]string `flag:"env"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{
		"--env", "A=1", "--env", "B=2", "--env", "A=3",
	}))
	assert.Equal(t, map[string]string{"A": "3", "B": "2"}, s.Env)
}

func TestMappingIntKeysAndValues(t *testing.T) {
	var s struct {
		Remap map[int]int `flag:"remap"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"--remap", "1=10", "--remap", "2=20"}))
	assert.Equal(t, map[int]int{1: 10, 2: 20}, s.Remap)
}

func TestMappingMalformedPair(t *testing.T) {
	var s struct {
		Env map[string]string `flag:"env2"`
	}
	err := Build(&s).ParseArgs([]string{"--env2", "A1"})
	var convErr *ConversionError
	assert.ErrorAs(t, err, &convErr)
}

func TestMappingList(t *testing.T) {
	var s struct {
		Rules []map[string]string `flag:"rule" nargs:"2"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{
		"--rule", "src=eth0", "dst=eth1",
		"--rule", "src=lo",
	}))
	exp := []map[string]string{
		{"src": "eth0", "dst": "eth1"},
		{"src": "lo"},
	}
	if diff := cmp.Diff(exp, s.Rules); diff != "" {
		t.Errorf("mapping list mismatch (-want +got):\n%s", diff)
	}
}

func TestPositionals(t *testing.T) {
	var s struct {
		Src  string
		Dst  string
		Deep bool `flag:"deep"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"a.txt", "--deep", "b.txt"}))
	assert.Equal(t, "a.txt", s.Src)
	assert.Equal(t, "b.txt", s.Dst)
	assert.True(t, s.Deep)
}

func TestPositionalListGreedy(t *testing.T) {
	var s struct {
		Inputs []string
		Out    string `flag:"o" default:"-"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"a", "b", "c", "-o", "out.txt"}))
	assert.Equal(t, []string{"a", "b", "c"}, s.Inputs)
	assert.Equal(t, "out.txt", s.Out)
}

func TestMissingRequiredAggregated(t *testing.T) {
	var s struct {
		Src  string
		Mode string `flag:"mode" required:"true"`
	}
	err := Build(&s).ParseArgs([]string{})
	var missing *MissingRequiredArgumentError
	if assert.ErrorAs(t, err, &missing) {
		assert.Equal(t, []string{"src", "--mode"}, missing.Missing)
	}
}

func TestDoubleDashTerminator(t *testing.T) {
	var s struct {
		Files []string
		Neg   bool `flag:"neg"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"--", "--neg", "-x"}))
	assert.Equal(t, []string{"--neg", "-x"}, s.Files)
	assert.False(t, s.Neg)

	assert.NoError(t, p.ParseArgs([]string{"--neg", "--", "-b", "--"}))
	assert.Equal(t, []string{"-b", "--"}, s.Files)
	assert.True(t, s.Neg)
}

func TestExtraPolicies(t *testing.T) {
	type def struct {
		Known string `flag:"known" default:"x"`
	}

	var s1 def
	err := Build(&s1).ParseArgs([]string{"--known", "a", "--bogus"})
	var unexpected *UnexpectedArgumentError
	if assert.ErrorAs(t, err, &unexpected) {
		assert.Equal(t, "--bogus", unexpected.Token)
		assert.Equal(t, 2, unexpected.Position)
	}

	var s2 def
	p2 := Build(&s2, WithConfig(Config{ExtraArguments: ExtraIgnore}))
	assert.NoError(t, p2.ParseArgs([]string{"--bogus", "--known", "a"}))
	assert.Equal(t, "a", s2.Known)
	assert.Empty(t, p2.Extra())

	var s3 def
	p3 := Build(&s3, WithConfig(Config{ExtraArguments: ExtraAllow}))
	assert.NoError(t, p3.ParseArgs([]string{"--bogus", "stray", "--known", "a"}))
	assert.Equal(t, []string{"--bogus", "stray"}, p3.Extra())
}

func TestExtraSinkField(t *testing.T) {
	var s struct {
		Known    string   `flag:"known" default:"x"`
		Leftover []string `extra:"true"`
	}
	p := Build(&s, WithConfig(Config{ExtraArguments: ExtraAllow}))
	assert.NoError(t, p.ParseArgs([]string{"--bogus", "stray"}))
	assert.Equal(t, []string{"--bogus", "stray"}, s.Leftover)
}

func TestNestedCommand(t *testing.T) {
	var s struct {
		Verbose bool `flag:"verbose"`
		Init    *struct {
			Quiet bool   `flag:"q"`
			Dir   string `flag:"dir" default:"."`
		}
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"init", "-q"}))
	if assert.NotNil(t, s.Init) {
		assert.True(t, s.Init.Quiet)
		assert.Equal(t, ".", s.Init.Dir)
	}
	assert.False(t, s.Verbose)
}

func TestCommandNotActivated(t *testing.T) {
	var s struct {
		Init *struct {
			Quiet bool `flag:"q"`
		}
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{}))
	assert.Nil(t, s.Init)
}

func TestCommandRequired(t *testing.T) {
	var s struct {
		Init *struct {
			Quiet bool `flag:"q"`
		} `required:"true"`
		Status *struct {
			Short bool `flag:"short"`
		}
	}
	err := Build(&s).ParseArgs([]string{})
	var missingCmd *MissingCommandError
	if assert.ErrorAs(t, err, &missingCmd) {
		assert.Equal(t, []string{"init", "status"}, missingCmd.Commands)
	}
}

func TestSecondCommandRejectedByDefault(t *testing.T) {
	var s struct {
		Init *struct {
			Quiet bool `flag:"q"`
		}
		Status *struct {
			Short bool `flag:"short"`
		}
	}
	err := Build(&s).ParseArgs([]string{"init", "status"})
	var unexpected *UnexpectedArgumentError
	if assert.ErrorAs(t, err, &unexpected) {
		assert.Equal(t, "status", unexpected.Token)
	}
}

func TestMultipleCommandChaining(t *testing.T) {
	var s struct {
		Fetch *struct {
			Depth int `flag:"depth" default:"0"`
		}
		Merge *struct {
			Squash bool `flag:"squash"`
		}
	}
	p := Build(&s, WithConfig(Config{AllowMultipleCommands: true}))
	assert.NoError(t, p.ParseArgs([]string{"fetch", "--depth", "1", "merge", "--squash"}))
	if assert.NotNil(t, s.Fetch) {
		assert.Equal(t, 1, s.Fetch.Depth)
	}
	if assert.NotNil(t, s.Merge) {
		assert.True(t, s.Merge.Squash)
	}
}

func TestCommandOptionsDoNotLeakUpward(t *testing.T) {
	var s struct {
		Init *struct {
			Quiet bool `flag:"q"`
		}
	}
	err := Build(&s).ParseArgs([]string{"-q", "init"})
	var unexpected *UnexpectedArgumentError
	if assert.ErrorAs(t, err, &unexpected) {
		assert.Equal(t, "-q", unexpected.Token)
	}
}

func TestExclusiveGroup(t *testing.T) {
	var s struct {
		JSON bool `flag:"json" group:"format,exclusive"`
		YAML bool `flag:"yaml" group:"format,exclusive"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"--json"}))
	assert.True(t, s.JSON)

	err := p.ParseArgs([]string{"--json", "--yaml"})
	var valErr *ValidationError
	if assert.ErrorAs(t, err, &valErr) {
		assert.Equal(t, "format", valErr.Field)
	}
}

func TestRequiredExclusiveGroup(t *testing.T) {
	var s struct {
		JSON bool `flag:"json" group:"format,exclusive,required"`
		YAML bool `flag:"yaml" group:"format,exclusive"`
	}
	err := Build(&s).ParseArgs([]string{})
	var missing *MissingRequiredArgumentError
	if assert.ErrorAs(t, err, &missing) {
		assert.Equal(t, []string{"format"}, missing.Missing)
	}
}

func TestDefaultsConvertedOnCommit(t *testing.T) {
	var s struct {
		Ports []int          `flag:"port" default:"80,443"`
		Tags  map[string]int `flag:"tag" default:"a=1,b=2"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{}))
	assert.Equal(t, []int{80, 443}, s.Ports)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, s.Tags)
}

func TestParseIsRepeatable(t *testing.T) {
	var s struct {
		Files []string `flag:"file"`
		Num   int      `flag:"n" default:"1"`
	}
	p := Build(&s)
	tokens := []string{"--file", "a", "--file", "b", "-n", "3"}
	assert.NoError(t, p.ParseArgs(tokens))
	first := s
	assert.NoError(t, p.ParseArgs(tokens))
	if diff := cmp.Diff(first, s); diff != "" {
		t.Errorf("repeated parse diverged (-first +second):\n%s", diff)
	}
}

func TestFailedParseLeavesTargetUntouched(t *testing.T) {
	var s struct {
		Num  int    `flag:"n" default:"1"`
		Name string `flag:"name" default:"x"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"-n", "5", "--name", "ok"}))
	err := p.ParseArgs([]string{"-n", "bad"})
	assert.Error(t, err)
	assert.Equal(t, 5, s.Num)
	assert.Equal(t, "ok", s.Name)
}

func TestConversionErrorDetail(t *testing.T) {
	var s struct {
		Num int `flag:"n" default:"1"`
	}
	err := Build(&s).ParseArgs([]string{"-n", "x9"})
	var convErr *ConversionError
	if assert.ErrorAs(t, err, &convErr) {
		assert.Equal(t, "x9", convErr.Token)
		assert.Equal(t, "--n", convErr.Field)
		assert.NotNil(t, errors.Unwrap(convErr))
	}
}

func TestHelpToken(t *testing.T) {
	var s struct {
		Num int `flag:"n" default:"1"`
	}
	p := Build(&s)
	assert.ErrorIs(t, p.ParseArgs([]string{"--help"}), ErrHelp)
	assert.ErrorIs(t, p.ParseArgs([]string{"-h"}), ErrHelp)
}

func TestDurationScalar(t *testing.T) {
	var s struct {
		Wait time.Duration `flag:"w" default:"1s"`
	}
	p := Build(&s)
	assert.NoError(t, p.ParseArgs([]string{"-w", "1h30m"}))
	assert.Equal(t, 90*time.Minute, s.Wait)
	assert.NoError(t, p.ParseArgs([]string{}))
	assert.Equal(t, time.Second, s.Wait)
}
