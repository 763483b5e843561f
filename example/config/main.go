package main

import (
	"fmt"

	argparser "github.com/ajatkj/typed-argparser"
)

type serverConfig struct {
	Host string
	Port int
}

type serveArgs struct {
	Conf    argparser.File[serverConfig] `flag:"conf" required:"true" typeargs:"watch=true" usage:"server configuration file"`
	Timeout string                       `flag:"timeout" default:"30s"`
}

func main() {
	var args serveArgs
	argparser.Build(&args).Parse()

	cfg := args.Conf.Get()
	fmt.Printf("serving on %s:%d (timeout %s)\n", cfg.Host, cfg.Port, args.Timeout)

	for range args.Conf.UpdateEvents() {
		cfg = args.Conf.Get()
		fmt.Printf("config reloaded: %s:%d\n", cfg.Host, cfg.Port)
	}
}
