package cli

import "rdcp/internal/global"

func DefineOptions() (cmdOpts *global.CommandSet) {
	cmdOpts = &global.CommandSet{
		CommandName:     RootCLICommand,
		UsageOption:     "[options]",
		Description:     "Remote Desktop Control Protocol (rdcp)",
		FullDescription: "  Streams a screen to one remote viewer and relays its input back",
	}
	return
}
