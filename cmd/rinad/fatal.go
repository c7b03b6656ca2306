package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/rinad/rinad/internal/log"
)

// fatal logs err at FatalLevel with a full stack trace and exits the
// process with a non-zero status. Used for unrecoverable initialization
// failures (missing transport, bad DH parameters), adapted from the
// teacher's UnrecoverableError: logging remains identical, but this daemon
// has no SNP-style "spin forever" fallback to preserve, so it exits instead.
func fatal(err error) {
	buf := make([]byte, 64*(1<<10))
	stackSize := runtime.Stack(buf, true)
	stackTrace := string(buf[:stackSize])

	msg := fmt.Sprintf("unrecoverable error: %v\n%s", err, stackTrace)
	log.G(context.Background()).WithError(err).Logf(logrus.FatalLevel, "%s", msg)
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
