package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/and161185/expense-keeper/internal/client"
	"github.com/and161185/expense-keeper/internal/convert"
	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/exchange"
	"github.com/and161185/expense-keeper/internal/model"
	"github.com/and161185/expense-keeper/internal/pager"
	"github.com/and161185/expense-keeper/internal/protocol"
)

// parse reads a command's flags and checks it got exactly want positionals.
func parse(name string, args []string, want int, setup func(fs *pflag.FlagSet)) ([]string, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if setup != nil {
		setup(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errUsage, name, err)
	}
	if want >= 0 && fs.NArg() != want {
		return nil, fmt.Errorf("%w: %s takes %d argument(s), got %d", errUsage, name, want, fs.NArg())
	}
	return fs.Args(), nil
}

// unwrap turns a failed protocol result into an error.
func unwrap[T any](r protocol.Result[T]) (T, error) {
	if r.Success {
		return r.Data, nil
	}
	cause := r.Unwrap()
	if cause == nil {
		cause = errors.New(r.Error)
	}
	return r.Data, cause
}

// withDoc runs fn against a freshly loaded document.
func withDoc(ctx context.Context, a *app, id string, fn func(ctx context.Context, pc *protocol.Client, doc model.Expense) error) error {
	pc, _, closeFn, err := a.signedIn()
	if err != nil {
		return err
	}
	defer closeFn()
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	doc, err := unwrap(pc.GetDocument(ctx, id))
	if err != nil {
		return err
	}
	return fn(ctx, pc, doc)
}

// mutate loads id, applies op and reports the new modification time.
func mutate(ctx context.Context, a *app, id string, op func(ctx context.Context, pc *protocol.Client, doc model.Expense) protocol.Result[model.Expense]) error {
	return withDoc(ctx, a, id, func(ctx context.Context, pc *protocol.Client, doc model.Expense) error {
		return applied(a, op(ctx, pc, doc))
	})
}

func applied(a *app, r protocol.Result[model.Expense]) error {
	e, err := unwrap(r)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "updated %s at %s\n", e.ID, e.Modified.Format(time.RFC3339))
	return nil
}

func cmdVersion(_ context.Context, a *app, _ []string) error {
	fmt.Fprintf(a.out, "ek %s (%s)\n", version, buildDate)
	return nil
}

func credentials(name string, args []string) (string, string, error) {
	var email, password string
	_, err := parse(name, args, 0, func(fs *pflag.FlagSet) {
		fs.StringVar(&email, "email", "", "account email")
		fs.StringVar(&password, "password", "", "account password")
	})
	if err != nil {
		return "", "", err
	}
	if email == "" || password == "" {
		return "", "", fmt.Errorf("%w: %s needs --email and --password", errUsage, name)
	}
	return email, password, nil
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	email, password, err := credentials("register", args)
	if err != nil {
		return err
	}
	api, closeFn, err := a.connect("")
	if err != nil {
		return err
	}
	defer closeFn()
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	uid, err := client.Register(ctx, api, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "registered", uid)
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	email, password, err := credentials("login", args)
	if err != nil {
		return err
	}
	api, closeFn, err := a.connect("")
	if err != nil {
		return err
	}
	defer closeFn()
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	s, err := client.Login(ctx, api, email, password)
	if err != nil {
		return err
	}
	if err := saveSession(s); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s until %s\n", s.Caller.Email, s.ExpiresAt.Local().Format(time.RFC3339))
	return nil
}

func cmdLogout(_ context.Context, a *app, args []string) error {
	if _, err := parse("logout", args, 0, nil); err != nil {
		return err
	}
	if err := clearSession(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func cmdNew(ctx context.Context, a *app, args []string) error {
	var title string
	if _, err := parse("new", args, 0, func(fs *pflag.FlagSet) {
		fs.StringVar(&title, "title", "", "document title")
	}); err != nil {
		return err
	}
	pc, _, closeFn, err := a.signedIn()
	if err != nil {
		return err
	}
	defer closeFn()
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	e, err := unwrap(pc.CreateDocument(ctx, protocol.Draft{Title: title}))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, e.ID)
	return nil
}

func cmdList(ctx context.Context, a *app, args []string) error {
	var (
		filter, sortKey string
		desc            bool
		page            int
	)
	if _, err := parse("ls", args, 0, func(fs *pflag.FlagSet) {
		fs.StringVar(&filter, "filter", string(model.FilterAll), "all, owned or shared")
		fs.StringVar(&sortKey, "sort", string(model.SortByModified), "created or modified")
		fs.BoolVar(&desc, "desc", false, "newest first")
		fs.IntVar(&page, "page", 1, "page number, starting at 1")
	}); err != nil {
		return err
	}
	if !model.SortKey(sortKey).Valid() || page < 1 {
		return fmt.Errorf("%w: ls: bad --sort or --page", errUsage)
	}
	pc, remote, closeFn, err := a.signedIn()
	if err != nil {
		return err
	}
	defer closeFn()
	ctx, cancel := a.bounded(ctx)
	defer cancel()

	p := pager.New(remote, pc.Caller())
	if err := p.SetFilter(ctx, model.Filter(filter)); err != nil {
		return err
	}
	// selecting the active key flips it, so this covers both directions
	if model.SortKey(sortKey) != p.Sort().Key {
		if err := p.SelectSort(ctx, model.SortKey(sortKey)); err != nil {
			return err
		}
	}
	if desc != (p.Sort().Direction == model.Desc) {
		if err := p.SelectSort(ctx, model.SortKey(sortKey)); err != nil {
			return err
		}
	}
	for p.Page() < page && p.HasNext() {
		if err := p.Next(ctx); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tROLE\tMODIFIED")
	for _, e := range p.Documents() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Title, model.RoleOf(e, pc.Caller()), e.Modified.Local().Format(time.DateTime))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	more := ""
	if p.HasNext() {
		more = fmt.Sprintf(", next: --page %d", p.Page()+1)
	}
	fmt.Fprintf(a.out, "page %d (%s %s)%s\n", p.Page(), p.Sort().Key, p.Sort().Direction, more)
	return nil
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	pos, err := parse("show", args, 1, nil)
	if err != nil {
		return err
	}
	return withDoc(ctx, a, pos[0], func(_ context.Context, _ *protocol.Client, doc model.Expense) error {
		return printJSON(a.out, convert.ToWireExpense(doc))
	})
}

func cmdTotals(ctx context.Context, a *app, args []string) error {
	pos, err := parse("totals", args, 1, nil)
	if err != nil {
		return err
	}
	return withDoc(ctx, a, pos[0], func(_ context.Context, _ *protocol.Client, doc model.Expense) error {
		totals := protocol.Totals(doc)
		for _, h := range doc.Headers {
			if sum, ok := totals[h.Key]; ok {
				fmt.Fprintf(a.out, "%s\t%s\n", h.Display, sum.StringFixed(2))
			}
		}
		return nil
	})
}

func cmdTitle(ctx context.Context, a *app, args []string) error {
	pos, err := parse("title", args, 2, nil)
	if err != nil {
		return err
	}
	return mutate(ctx, a, pos[0], func(ctx context.Context, pc *protocol.Client, doc model.Expense) protocol.Result[model.Expense] {
		return pc.UpdateTitle(ctx, doc, pos[1])
	})
}

func cmdShare(ctx context.Context, a *app, args []string) error {
	var role string
	pos, err := parse("share", args, 2, func(fs *pflag.FlagSet) {
		fs.StringVar(&role, "role", string(model.RoleViewer), "editor or viewer")
	})
	if err != nil {
		return err
	}
	r := model.Role(role)
	if r != model.RoleEditor && r != model.RoleViewer {
		return fmt.Errorf("%w: share: role must be editor or viewer", errUsage)
	}
	return mutate(ctx, a, pos[0], func(ctx context.Context, pc *protocol.Client, doc model.Expense) protocol.Result[model.Expense] {
		return pc.AddToACL(ctx, doc, pos[1], r)
	})
}

func cmdRevoke(ctx context.Context, a *app, args []string) error {
	pos, err := parse("revoke", args, 2, nil)
	if err != nil {
		return err
	}
	return mutate(ctx, a, pos[0], func(ctx context.Context, pc *protocol.Client, doc model.Expense) protocol.Result[model.Expense] {
		return pc.RemoveFromACL(ctx, doc, pos[1])
	})
}

func cmdSort(ctx context.Context, a *app, args []string) error {
	pos, err := parse("sort", args, 2, nil)
	if err != nil {
		return err
	}
	return mutate(ctx, a, pos[0], func(ctx context.Context, pc *protocol.Client, doc model.Expense) protocol.Result[model.Expense] {
		return pc.ToggleSort(ctx, doc, pos[1])
	})
}

// rowRef resolves a 1-based row number or a row id to the row's id.
func rowRef(doc model.Expense, ref string) string {
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(doc.Data) {
		return doc.Data[n-1].ID()
	}
	return ref
}

func header(doc model.Expense, key string) (model.Header, bool) {
	for _, h := range doc.Headers {
		if h.Key == key {
			return h, true
		}
	}
	return model.Header{}, false
}

// parseCell converts raw to the value kind column h stores.
func parseCell(h model.Header, raw string) (any, error) {
	switch h.Type {
	case model.ColumnCheckbox:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a boolean: %w", h.Key, raw, errs.ErrInvalidArgument)
		}
		return b, nil
	case model.ColumnNumber:
		if raw == "" {
			return "", nil
		}
		if _, err := decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("%s: %q is not a number: %w", h.Key, raw, errs.ErrInvalidArgument)
		}
		return raw, nil
	case model.ColumnDate:
		if raw == "" {
			return "", nil
		}
		if _, err := time.Parse(time.DateOnly, raw); err != nil {
			return nil, fmt.Errorf("%s: %q is not a YYYY-MM-DD date: %w", h.Key, raw, errs.ErrInvalidArgument)
		}
		return raw, nil
	}
	return raw, nil
}

func cmdRowAdd(ctx context.Context, a *app, args []string) error {
	pos, err := parse("row-add", args, -1, nil)
	if err != nil {
		return err
	}
	if len(pos) < 1 {
		return fmt.Errorf("%w: row-add needs a document id", errUsage)
	}
	return withDoc(ctx, a, pos[0], func(ctx context.Context, pc *protocol.Client, doc model.Expense) error {
		values := model.Row{}
		for _, kv := range pos[1:] {
			k, v, ok := strings.Cut(kv, "=")
			h, known := header(doc, k)
			if !ok || !known {
				return fmt.Errorf("bad cell %q: %w", kv, errs.ErrInvalidArgument)
			}
			cell, err := parseCell(h, v)
			if err != nil {
				return err
			}
			values[k] = cell
		}
		return applied(a, pc.AddRow(ctx, doc, values))
	})
}

func cmdRowSet(ctx context.Context, a *app, args []string) error {
	pos, err := parse("row-set", args, 4, nil)
	if err != nil {
		return err
	}
	return withDoc(ctx, a, pos[0], func(ctx context.Context, pc *protocol.Client, doc model.Expense) error {
		h, ok := header(doc, pos[2])
		if !ok {
			return fmt.Errorf("no column %q: %w", pos[2], errs.ErrInvalidArgument)
		}
		cell, err := parseCell(h, pos[3])
		if err != nil {
			return err
		}
		return applied(a, pc.SetCell(ctx, doc, rowRef(doc, pos[1]), h.Key, cell))
	})
}

func cmdRowDisable(ctx context.Context, a *app, args []string) error {
	off := true
	pos, err := parse("row-disable", args, 2, func(fs *pflag.FlagSet) {
		fs.BoolVar(&off, "off", true, "false re-enables the row")
	})
	if err != nil {
		return err
	}
	return mutate(ctx, a, pos[0], func(ctx context.Context, pc *protocol.Client, doc model.Expense) protocol.Result[model.Expense] {
		return pc.SetRowDisabled(ctx, doc, rowRef(doc, pos[1]), off)
	})
}

func cmdRowRemove(ctx context.Context, a *app, args []string) error {
	pos, err := parse("row-rm", args, 2, nil)
	if err != nil {
		return err
	}
	return mutate(ctx, a, pos[0], func(ctx context.Context, pc *protocol.Client, doc model.Expense) protocol.Result[model.Expense] {
		return pc.DeleteRow(ctx, doc, rowRef(doc, pos[1]))
	})
}

func cmdColAdd(ctx context.Context, a *app, args []string) error {
	pos, err := parse("col-add", args, 4, nil)
	if err != nil {
		return err
	}
	h := model.Header{Key: pos[1], Type: model.ColumnType(pos[2]), Display: pos[3]}
	if !h.Type.Valid() {
		return fmt.Errorf("%w: col-add: type must be text, checkbox, number or date", errUsage)
	}
	return mutate(ctx, a, pos[0], func(ctx context.Context, pc *protocol.Client, doc model.Expense) protocol.Result[model.Expense] {
		return pc.AddColumn(ctx, doc, h)
	})
}

func cmdColRename(ctx context.Context, a *app, args []string) error {
	pos, err := parse("col-rename", args, 3, nil)
	if err != nil {
		return err
	}
	return mutate(ctx, a, pos[0], func(ctx context.Context, pc *protocol.Client, doc model.Expense) protocol.Result[model.Expense] {
		return pc.RenameColumn(ctx, doc, pos[1], pos[2])
	})
}

func cmdColRemove(ctx context.Context, a *app, args []string) error {
	pos, err := parse("col-rm", args, 2, nil)
	if err != nil {
		return err
	}
	return mutate(ctx, a, pos[0], func(ctx context.Context, pc *protocol.Client, doc model.Expense) protocol.Result[model.Expense] {
		return pc.RemoveColumn(ctx, doc, pos[1])
	})
}

func cmdRemove(ctx context.Context, a *app, args []string) error {
	pos, err := parse("rm", args, 1, nil)
	if err != nil {
		return err
	}
	return withDoc(ctx, a, pos[0], func(ctx context.Context, pc *protocol.Client, doc model.Expense) error {
		if _, err := unwrap(pc.DeleteDocument(ctx, doc)); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "deleted", doc.ID)
		return nil
	})
}

func cmdExport(ctx context.Context, a *app, args []string) error {
	out := "-"
	pos, err := parse("export", args, 1, func(fs *pflag.FlagSet) {
		fs.StringVarP(&out, "out", "o", "-", "destination file, - for stdout")
	})
	if err != nil {
		return err
	}
	return withDoc(ctx, a, pos[0], func(_ context.Context, _ *protocol.Client, doc model.Expense) error {
		f := exchange.Export(doc, time.Now())
		if out == "-" {
			return exchange.Encode(a.out, f)
		}
		var buf bytes.Buffer
		if err := exchange.Encode(&buf, f); err != nil {
			return err
		}
		return os.WriteFile(out, buf.Bytes(), 0o600)
	})
}

func cmdImport(ctx context.Context, a *app, args []string) error {
	pos, err := parse("import", args, 2, nil)
	if err != nil {
		return err
	}
	raw, err := readAll(pos[1], a.in)
	if err != nil {
		return err
	}
	f, err := exchange.Decode(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return mutate(ctx, a, pos[0], func(ctx context.Context, pc *protocol.Client, doc model.Expense) protocol.Result[model.Expense] {
		return exchange.Import(ctx, pc, doc, f)
	})
}

func cmdWatch(ctx context.Context, a *app, args []string) error {
	pos, err := parse("watch", args, 1, nil)
	if err != nil {
		return err
	}
	_, remote, closeFn, err := a.signedIn()
	if err != nil {
		return err
	}
	defer closeFn()

	err = remote.Watch(ctx, pos[0], func(e model.Expense, exists bool) error {
		return printJSON(a.out, convert.ToWireSnapshot(e, exists))
	})
	switch {
	case errors.Is(err, errs.ErrPermissionDenied):
		return fmt.Errorf("access to %s was lost: %w", pos[0], err)
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return nil
	}
	return err
}
