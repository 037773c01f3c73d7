package main

import (
	"fmt"
	"os"
	"strings"

	"elaine/internal/ipc"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <mute|unmute|trigger|say> [text...]\n", os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cmd := os.Args[1]
	text := strings.Join(os.Args[2:], " ")

	switch cmd {
	case "mute", "unmute", "trigger":
	case "say":
		if text == "" {
			usage()
		}
	default:
		usage()
	}

	if err := ipc.SendCommand(cmd, text); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
