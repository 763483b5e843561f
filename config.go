package argparser

import (
	"os"
	"path/filepath"
)

// ExtraArgsPolicy decides what happens to tokens the grammar does not
// recognize.
type ExtraArgsPolicy int

const (
	// ExtraError fails the parse with UnexpectedArgumentError.
	ExtraError ExtraArgsPolicy = iota
	// ExtraIgnore silently drops unrecognized tokens.
	ExtraIgnore
	// ExtraAllow collects unrecognized tokens into Parser.Extra and,
	// when the struct declares a []string field tagged extra:"true",
	// into that field as well.
	ExtraAllow
)

// Config carries the parse-time options recognized by the core. The
// zero value is the default behavior: unrecognized tokens are errors
// and only one command may be activated per level.
type Config struct {
	ExtraArguments        ExtraArgsPolicy
	AllowMultipleCommands bool

	// Cosmetic options consumed only by the usage renderer.
	UsagePrefix    string // default: base name of the executable
	CommandMetavar string // default "COMMAND"
}

func (c Config) usagePrefix() string {
	if c.UsagePrefix == "" {
		return filepath.Base(os.Args[0])
	}
	return c.UsagePrefix
}

func (c Config) commandMetavar() string {
	if c.CommandMetavar == "" {
		return "COMMAND"
	}
	return c.CommandMetavar
}
