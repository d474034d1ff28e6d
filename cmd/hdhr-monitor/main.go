// SPDX-License-Identifier: MIT

// Command hdhr-monitor reports disk space utilization of HDHomeRun storage
// devices and deletes recordings to keep a minimum amount of space free.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
