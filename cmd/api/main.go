package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError logs err through the global logger, or writes it to w when no
// logger was installed (e.g. logger.Init itself failed).
func reportError(w io.Writer, err error) {
	l := zap.L()
	if !l.Core().Enabled(zap.ErrorLevel) {
		fmt.Fprintln(w, "imagehost:", err)
		return
	}
	l.Error("command failed", zap.Error(err))
	_ = l.Sync()
}
