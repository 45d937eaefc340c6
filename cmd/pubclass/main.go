// Package main provides the pubclass CLI, which creates multi-level
// publication classifications from citation networks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"
)

// Version is the current pubclass version
var Version = "1.0.0"

// options holds the flags shared by all commands
type options struct {
	v          *viper.Viper
	configFile string
	levels     []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
