// Command ek is the command-line client for expense-keeper.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	v1 "github.com/and161185/expense-keeper/internal/api/expensesv1"
	"github.com/and161185/expense-keeper/internal/client"
	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/protocol"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var errUsage = errors.New("usage")

// app carries the global flags into every command.
type app struct {
	out     io.Writer
	in      io.Reader
	dial    client.DialConfig
	extra   []grpc.DialOption
	timeout time.Duration
}

// connect dials the server with token attached to every call.
func (a *app) connect(token string) (v1.ExpenseKeeperClient, func(), error) {
	cfg := a.dial
	cfg.Token = token
	cc, api, err := client.Dial(cfg, a.extra...)
	if err != nil {
		return nil, nil, err
	}
	return api, func() { _ = cc.Close() }, nil
}

// signedIn loads the saved session and binds a protocol client to it.
func (a *app) signedIn() (*protocol.Client, *client.Remote, func(), error) {
	s, err := loadSession()
	if err != nil {
		return nil, nil, nil, err
	}
	api, closeFn, err := a.connect(s.Token)
	if err != nil {
		return nil, nil, nil, err
	}
	remote := client.NewRemote(api)
	pc, err := protocol.New(remote, s.caller())
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	return pc, remote, closeFn, nil
}

// bounded applies the per-command timeout. Zero disables it.
func (a *app) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

type command struct {
	args string
	help string
	run  func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"version":     {"", "print the client version", cmdVersion},
	"register":    {"--email E --password P", "create an account", cmdRegister},
	"login":       {"--email E --password P", "sign in and save the session", cmdLogin},
	"logout":      {"", "forget the saved session", cmdLogout},
	"new":         {"[--title T]", "create a document", cmdNew},
	"ls":          {"[--filter all|owned|shared] [--sort created|modified] [--desc] [--page N]", "list documents", cmdList},
	"show":        {"ID", "print a document", cmdShow},
	"totals":      {"ID", "sum the number columns of enabled rows", cmdTotals},
	"title":       {"ID TITLE", "rename a document", cmdTitle},
	"share":       {"ID EMAIL [--role editor|viewer]", "grant access", cmdShare},
	"revoke":      {"ID EMAIL", "remove access", cmdRevoke},
	"sort":        {"ID COLUMN", "cycle the sort of a column", cmdSort},
	"row-add":     {"ID [KEY=VALUE...]", "append a row", cmdRowAdd},
	"row-set":     {"ID ROW KEY VALUE", "set one cell", cmdRowSet},
	"row-disable": {"ID ROW [--off=false]", "exclude a row from totals", cmdRowDisable},
	"row-rm":      {"ID ROW", "delete a row", cmdRowRemove},
	"col-add":     {"ID KEY TYPE DISPLAY", "add a column", cmdColAdd},
	"col-rename":  {"ID KEY DISPLAY", "rename a column", cmdColRename},
	"col-rm":      {"ID KEY", "remove a column", cmdColRemove},
	"rm":          {"ID", "delete a document", cmdRemove},
	"export":      {"ID [--out FILE|-]", "write a document to an exchange file", cmdExport},
	"import":      {"ID FILE|-", "replace a document's content from an exchange file", cmdImport},
	"watch":       {"ID", "print every change until the document goes away", cmdWatch},
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "ek %s (%s)\n\nUsage:\n  ek [--addr HOST:PORT] [--cacert FILE] [--insecure] [--plaintext] <command> [args]\n\nCommands:\n", version, buildDate)
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c := commands[n]
		fmt.Fprintf(w, "  %-12s %-40s %s\n", n, c.args, c.help)
	}
}

// run parses the global flags and dispatches to one command.
func run(ctx context.Context, args []string, out io.Writer, in io.Reader, extra ...grpc.DialOption) error {
	flags := pflag.NewFlagSet("ek", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.SetOutput(io.Discard)
	addr := flags.String("addr", envOr("EK_ADDR", "localhost:8443"), "server address")
	ca := flags.String("cacert", "", "CA bundle to verify the server")
	skip := flags.Bool("insecure", false, "skip TLS verification (dev only)")
	plain := flags.Bool("plaintext", false, "connect without TLS (dev only)")
	timeout := flags.Duration("timeout", 10*time.Second, "per-command deadline, 0 for none")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if flags.NArg() == 0 {
		return errUsage
	}
	cmd, ok := commands[flags.Arg(0)]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, flags.Arg(0))
	}
	a := &app{
		out:     out,
		in:      in,
		dial:    client.DialConfig{Addr: *addr, CACert: *ca, SkipVerify: *skip, Plaintext: *plain},
		extra:   extra,
		timeout: *timeout,
	}
	return cmd.run(ctx, a, flags.Args()[1:])
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stdin)
	if errors.Is(err, errUsage) {
		if msg := strings.TrimPrefix(err.Error(), errUsage.Error()+": "); msg != errUsage.Error() {
			fmt.Fprintln(os.Stderr, msg)
		}
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

// ---------- helpers ----------

func readAll(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// explain turns a failure into the line printed for the user.
func explain(err error) string {
	switch {
	case errors.Is(err, errNoSession):
		return err.Error()
	case errors.Is(err, errs.ErrUnauthenticated):
		return "not signed in or session expired; run `ek login`"
	case errors.Is(err, errs.ErrPermissionDenied):
		return "permission denied"
	case errors.Is(err, errs.ErrAlreadyExists):
		return "already exists"
	case errors.Is(err, errs.ErrRateLimited):
		return "too many attempts, try again later"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	}
	return err.Error()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", explain(err))
	os.Exit(1)
}
