package cli

import (
	"flag"

	"rdcp/internal/global"
)

// Command line surface shared by every mode
type Options struct {
	Connect     string // host:port to dial immediately after startup
	ClientOnly  bool   // suppress the built-in server
	Password    string
	ConfigPath  string
	SetPassword bool
	ShowVersion bool
}

func SetGlobalArguments(fs *flag.FlagSet) {
	fs.IntVar(&global.Verbosity, "v", 1, "Increase detailed progress messages (Higher is more verbose) <0...4>")
	fs.IntVar(&global.Verbosity, "verbosity", 1, "Increase detailed progress messages (Higher is more verbose) <0...4>")
}

func SetOptions(fs *flag.FlagSet, opts *Options) {
	fs.StringVar(&opts.Connect, "c", "", "Dial the given host:port immediately after startup")
	fs.StringVar(&opts.Connect, "connect", "", "Dial the given host:port immediately after startup")
	fs.BoolVar(&opts.ClientOnly, "client", false, "Do not start the built-in server")
	fs.StringVar(&opts.Password, "p", "", "Shared secret for the connection (prompted when omitted)")
	fs.StringVar(&opts.Password, "password", "", "Shared secret for the connection (prompted when omitted)")
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to the configuration file")
	fs.BoolVar(&opts.SetPassword, "set-password", false, "Store a new server password and exit")
	fs.BoolVar(&opts.ShowVersion, "V", false, "Show version information")
	fs.BoolVar(&opts.ShowVersion, "version", false, "Show version information")
}
