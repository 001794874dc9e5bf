package search

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hashicorp-forge/dwclient/internal/cmd/base"
	"github.com/hashicorp-forge/dwclient/pkg/docuware"
	"github.com/hashicorp-forge/dwclient/pkg/query"
	"github.com/hashicorp-forge/dwclient/pkg/results"
	"github.com/hashicorp-forge/dwclient/pkg/transport"
)

type Command struct {
	*base.Command

	flagOrganization string
	flagFileCabinet  string
	flagDialog       string
	flagOr           bool
	flagFormat       string
	flagLimit        int
	flagPageSize     int
	flagSort         string
	flagDesc         bool
}

func (c *Command) Synopsis() string {
	return "Search documents"
}

func (c *Command) Help() string {
	return `Usage: dw search -file-cabinet NAME [options] FIELD=VALUE[,VALUE...] ...

  Searches a file cabinet through one of its search dialogs. Each argument
  is a condition; values of one condition are alternatives. Two values on a
  date field select the range between them.

  Use "\" to escape a comma, "=" or a wildcard, or quote the value:

      dw search -file-cabinet Archive 'Company=Acme\, Inc.' DOCDATE=2023-01-01,2023-12-31` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("search", flag.ContinueOnError))

	f.StringVar(
		&c.flagOrganization, "organization", "",
		"Organization (id or name). Default: the configured organization, or the first one.",
	)
	f.StringVar(
		&c.flagFileCabinet, "file-cabinet", "",
		"(Required) File cabinet (id or name).",
	)
	f.StringVar(
		&c.flagDialog, "dialog", "",
		"Search dialog (id or name). Default: the first search dialog.",
	)
	f.BoolVar(
		&c.flagOr, "or", false,
		"Match any condition instead of all.",
	)
	f.StringVar(
		&c.flagFormat, "format", "table",
		"Output format: table, json or yaml.",
	)
	f.IntVar(
		&c.flagLimit, "limit", 0,
		"Stop after this many results. 0 prints all.",
	)
	f.IntVar(
		&c.flagPageSize, "page-size", 0,
		"Results per request. Default: page_size from the config.",
	)
	f.StringVar(
		&c.flagSort, "sort", "",
		"Sort by this field.",
	)
	f.BoolVar(
		&c.flagDesc, "desc", false,
		"Sort descending.",
	)

	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagFileCabinet == "" {
		c.UI.Error("file-cabinet flag is required")
		return 1
	}
	if f.NArg() == 0 {
		c.UI.Error("at least one condition is required")
		return 1
	}
	format, err := parseFormat(c.flagFormat)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := c.LoadConfig()
	if err != nil {
		return c.Fail("loading config", err)
	}
	client, err := c.Connect(ctx, cfg, base.ConnectOptions{})
	if err != nil {
		return c.Fail("logging in", err)
	}

	dlg, err := c.dialog(ctx, client, cfg.Organization)
	if err != nil {
		return c.Fail("finding dialog", err)
	}

	req := query.Request{
		Expression: query.List(f.Args()),
		Operation:  query.And,
		PageSize:   cfg.Pages(),
		SortField:  c.flagSort,
		SortOrder:  query.Asc,
	}
	if c.flagOr {
		req.Operation = query.Or
	}
	if c.flagPageSize > 0 {
		req.PageSize = c.flagPageSize
	}
	if c.flagDesc {
		req.SortOrder = query.Desc
	}

	it, err := c.search(ctx, dlg, req, cfg.RetryWindow())
	if err != nil {
		return c.Fail("searching", err)
	}

	var records []*results.Record
	for r, err := range it.All(ctx) {
		if err != nil {
			return c.Fail("reading results", err)
		}
		records = append(records, r)
		if c.flagLimit > 0 && len(records) >= c.flagLimit {
			break
		}
	}
	c.Log.Debug("search finished", "count", it.Count(), "read", len(records))

	out, err := render(format, records)
	if err != nil {
		return c.Fail("rendering results", err)
	}
	c.UI.Output(out)
	return 0
}

func (c *Command) dialog(ctx context.Context, client *docuware.Client, defaultOrg string) (*docuware.SearchDialog, error) {
	key := c.flagOrganization
	if key == "" {
		key = defaultOrg
	}

	var org *docuware.Organization
	if key != "" {
		o, err := client.Organization(ctx, key)
		if err != nil {
			return nil, err
		}
		org = o
	} else {
		orgs, err := client.Organizations(ctx)
		if err != nil {
			return nil, err
		}
		if len(orgs) == 0 {
			return nil, &docuware.NotFoundError{Kind: "organization"}
		}
		org = orgs[0]
	}

	fc, err := org.FileCabinet(ctx, c.flagFileCabinet)
	if err != nil {
		return nil, err
	}
	return fc.SearchDialog(ctx, c.flagDialog)
}

// search runs the search, retrying transport failures for up to maxElapsed.
// Every other error is returned at once.
func (c *Command) search(ctx context.Context, dlg *docuware.SearchDialog, req query.Request, maxElapsed time.Duration) (*results.Iterator, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed

	var it *results.Iterator
	operation := func() error {
		var err error
		it, err = dlg.Search(ctx, req)
		if err != nil && !transport.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, d time.Duration) {
		c.Log.Warn("search failed, retrying", "error", err, "backoff", d)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return it, nil
}
