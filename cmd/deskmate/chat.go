package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ubitech/deskmate/pkg/session"
)

func runChatCommand(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	configPath := fs.String("config", "", "explicit config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := initRuntime(*configPath)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt.store.Refresh(ctx)
	if msg := rt.store.LastError(); msg != "" {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	}

	return chatLoop(ctx, rt, os.Stdin, os.Stdout)
}

func chatLoop(ctx context.Context, rt *runtime, in io.Reader, out io.Writer) error {
	sess := rt.sessions.Create()
	fmt.Fprintf(out, "%s\n\n", session.Greeting)
	fmt.Fprintln(out, `(type "exit" or press Ctrl-D to quit)`)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if ctx.Err() != nil {
			break
		}

		reply := rt.responder.Respond(ctx, sess, line)
		fmt.Fprintf(out, "\n%s\n\n", reply.Text)
	}
	return scanner.Err()
}
