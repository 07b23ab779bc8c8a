package main

import (
	"bookingchecker/cmd/bookingchecker/commands"
	"bookingchecker/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
