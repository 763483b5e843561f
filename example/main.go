package main

import (
	"fmt"

	argparser "github.com/ajatkj/typed-argparser"
)

type initCmd struct {
	Quiet  bool   `flag:"q" usage:"only print error and warning messages"`
	Branch string `flag:"initial-branch" short:"b" default:"main" usage:"name of the initial branch"`
}

type addCmd struct {
	DryRun   bool     `flag:"dry-run" short:"n" usage:"do not actually add the files"`
	Verbose  bool     `flag:"verbose" short:"v"`
	Pathspec []string `usage:"files to add content from"`
}

type commitCmd struct {
	Message string `flag:"m" required:"true" usage:"commit message"`
	All     bool   `flag:"all" short:"a" usage:"commit all changed files"`
}

type remoteCmd struct {
	Name string        `usage:"remote name"`
	URL  argparser.URL `usage:"remote url" typeargs:"schemes=http|https|ssh"`
}

type gitArgs struct {
	Dir     string            `flag:"C" default:"." usage:"run as if started in this path"`
	Config  map[string]string `flag:"c" usage:"set a configuration parameter"`
	Verbose int               `flag:"v" counter:"true" usage:"increase verbosity"`

	Init   *initCmd   `usage:"create an empty repository"`
	Add    *addCmd    `usage:"add file contents to the index"`
	Commit *commitCmd `usage:"record changes to the repository"`
	Remote *remoteCmd `usage:"manage the set of tracked repositories"`
}

func main() {
	var args gitArgs
	argparser.Build(&args, argparser.WithConfig(argparser.Config{
		UsagePrefix: "git",
	})).Parse()

	fmt.Printf("%+v\n", args)
	switch {
	case args.Init != nil:
		fmt.Printf("init: quiet=%v branch=%s\n", args.Init.Quiet, args.Init.Branch)
	case args.Add != nil:
		fmt.Printf("add: %v (dry run: %v)\n", args.Add.Pathspec, args.Add.DryRun)
	case args.Commit != nil:
		fmt.Printf("commit: %q\n", args.Commit.Message)
	case args.Remote != nil:
		fmt.Printf("remote: %s -> %s\n", args.Remote.Name, args.Remote.URL.String())
	}
}
