package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"sophie/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket of sophie-daemon")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: sophie-ctl [--socket path] [trigger|reset|status]")
		cli.PrintDefaults()
	}
	cli.Parse()

	cmd := ipc.CmdTrigger
	if cli.NArg() > 0 {
		cmd = cli.Arg(0)
	}

	reply, err := ipc.Send(*socket, cmd)
	if err != nil {
		fmt.Println("sophie-daemon not running:", err)
		os.Exit(1)
	}
	if !reply.OK {
		fmt.Println("error:", reply.Error)
		os.Exit(1)
	}
	fmt.Printf("ok: %s, %d turns in history\n", reply.State, reply.Turns)
}
