package main

import (
	"fmt"
	"os"

	"github.com/ianzepp/monk-irc-sub000/internal/config"
	"github.com/spf13/pflag"
)

// Args are the process's command-line arguments. Grounded on the teacher's
// args.go (flag.String("conf", ...) + printUsage on error), ported from the
// stdlib flag package to spf13/pflag so the same FlagSet can be bound
// directly into viper by internal/config.Load.
type Args struct {
	ConfigFile string
	Flags      *pflag.FlagSet
}

func getArgs() *Args {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	configFile := fs.String("conf", "", "configuration file (optional; flags and env vars also apply)")
	config.Flags(fs)

	if err := fs.Parse(os.Args[1:]); err != nil {
		printUsage(err, fs)
		return nil
	}

	return &Args{ConfigFile: *configFile, Flags: fs}
}

func printUsage(err error, fs *pflag.FlagSet) {
	_, _ = fmt.Fprintf(os.Stderr, "%s\n", err)
	_, _ = fmt.Fprintf(os.Stderr, "Usage: %s <arguments>\n", os.Args[0])
	fs.PrintDefaults()
}
