package main

import (
	"courtwatch/cmd/courtwatch/commands"
	"courtwatch/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
