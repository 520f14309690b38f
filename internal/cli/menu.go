package cli

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"rdcp/internal/global"
)

const RootCLICommand string = "root"

// Full standardized help menu (wraps option printer as well)
func PrintHelpMenu(fs *flag.FlagSet, cmdOpts *global.CommandSet) {
	const baseIndentSpaces = 2

	usageParts := []string{os.Args[0]}
	if cmdOpts.UsageOption != "" {
		usageParts = append(usageParts, cmdOpts.UsageOption)
	}
	fmt.Printf("Usage: %s\n\n", strings.Join(usageParts, " "))

	fmt.Println(cmdOpts.Description)
	fmt.Println(cmdOpts.FullDescription)
	fmt.Println()

	printFlagOptions(fs, baseIndentSpaces)
}

// Custom printer to deduplicate short/long usages and indent automatically
func printFlagOptions(fs *flag.FlagSet, baseIndentSpaces int) {
	type optInfo struct {
		names      []string
		usage      string
		defaultVal string
	}

	// Deduplicate flags sharing the same usage text into one line
	seen := make(map[string]*optInfo)
	fs.VisitAll(func(arg *flag.Flag) {
		prefix := "--"
		if len(arg.Name) == 1 {
			prefix = "-"
		}

		opt, dup := seen[arg.Usage]
		if !dup {
			opt = &optInfo{usage: arg.Usage, defaultVal: arg.DefValue}
			seen[arg.Usage] = opt
		}
		opt.names = append(opt.names, prefix+arg.Name)
	})

	opts := make([]*optInfo, 0, len(seen))
	for _, opt := range seen {
		// Short form first
		sort.Slice(opt.names, func(a, b int) bool {
			return len(opt.names[a]) < len(opt.names[b])
		})
		opts = append(opts, opt)
	}
	sort.Slice(opts, func(a, b int) bool {
		return strings.TrimLeft(opts[a].names[0], "-") < strings.TrimLeft(opts[b].names[0], "-")
	})

	maxLen := 0
	for _, opt := range opts {
		left := strings.Join(opt.names, ", ")
		if len(left) > maxLen {
			maxLen = len(left)
		}
	}

	indent := strings.Repeat(" ", baseIndentSpaces)
	fmt.Printf("%sOptions:\n", indent)
	for _, opt := range opts {
		left := strings.Join(opt.names, ", ")
		padding := strings.Repeat(" ", maxLen-len(left)+2)

		desc := opt.usage
		if opt.defaultVal != "" && opt.defaultVal != "false" && opt.defaultVal != "0" {
			desc += fmt.Sprintf(" [default: %s]", opt.defaultVal)
		}
		fmt.Printf("%s  %s%s%s\n", indent, left, padding, desc)
	}
}
