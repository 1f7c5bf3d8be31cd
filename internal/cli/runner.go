// Package cli implements the itemsync command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idilsaglam/itemsync/internal/config"
	"github.com/idilsaglam/itemsync/internal/errs"
	"github.com/idilsaglam/itemsync/internal/itemsync"
	"github.com/idilsaglam/itemsync/internal/logging"
	"github.com/idilsaglam/itemsync/internal/store"
	"github.com/idilsaglam/itemsync/internal/store/backend"
	"github.com/idilsaglam/itemsync/internal/ui"
)

// Exit codes: 0 ok, 1 error, 2 usage.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// usageError marks bad invocations so Run can answer with ExitUsage.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// app carries what every subcommand shares.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configFile string
}

// Execute runs the CLI against the process streams until it finishes or the
// process is interrupted.
func Execute(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return Run(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

// Run dispatches args and returns an exit code.
func Run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{v: config.New(), in: in, out: out, errOut: errOut}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	ui.SetOutput(out, errOut)
	ui.Fail(err.Error())
	var ue usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintln(errOut, ui.C(ui.Current().Muted, "Hint: run `itemsync --help` for usage"))
		return ExitUsage
	}
	return ExitError
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "itemsync",
		Short:         "Keep a local item list in sync with a live collection",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", "", "path to itemsync.yaml")
	pf.String("backend", "", "store backend: memory, json, sqlite or firestore")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("color", "auto", "colorize output: auto, always or never")

	root.AddCommand(
		a.lsCommand(),
		a.addCommand(),
		a.editCommand(),
		a.rmCommand(),
		a.watchCommand(),
		a.tuiCommand(),
		a.serveCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	flags := cmd.Flags()
	for key, name := range map[string]string{
		"backend":    "backend",
		"log.level":  "log-level",
		"serve.addr": "addr",
	} {
		if f := flags.Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logging.Setup(cfg.Log)
	ui.SetTheme(cfg.Theme)
	ui.SetOutput(a.out, a.errOut)

	switch color, _ := flags.GetString("color"); color {
	case "auto":
	case "always":
		ui.SetColorForcing(true, false)
	case "never":
		ui.SetColorForcing(false, true)
	default:
		return usagef("unknown --color %q (want auto, always or never)", color)
	}
	return nil
}

// session is an open collection with a Syncer over it.
type session struct {
	coll   store.Collection
	syncer *itemsync.Syncer
	subErr chan error
}

func (a *app) open(ctx context.Context, subscribe bool) (*session, error) {
	coll, err := backend.Open(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	sess := &session{coll: coll, subErr: make(chan error, 1)}
	sess.syncer = itemsync.New(coll,
		itemsync.WithTimeout(a.cfg.Timeout),
		itemsync.WithErrorHandler(func(op itemsync.Op, err error) {
			if op != itemsync.OpSubscribe {
				return
			}
			select {
			case sess.subErr <- err:
			default:
			}
		}),
	)
	if subscribe {
		sess.syncer.Start()
	}
	return sess, nil
}

// waitReady blocks until the first snapshot arrives.
func (s *session) waitReady(ctx context.Context) error {
	select {
	case <-s.syncer.Ready():
		return nil
	case err := <-s.subErr:
		return err
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), errs.ErrCodeSubscribeFailed, "waiting for first snapshot")
	}
}

func (s *session) Close() error {
	s.syncer.Stop()
	s.syncer.Wait()
	return s.coll.Close()
}

// checkArgs wraps a cobra argument validator so its errors count as usage errors.
func checkArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		if err := check(cmd, a); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func isInteractive(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
