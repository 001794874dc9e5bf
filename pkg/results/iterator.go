// Package results iterates over search results.
//
// The service returns results in pages linked by a "next" link. Iterator
// hides the paging: it holds one page at a time and fetches the following
// page only when the current one is consumed.
package results

import (
	"context"
	"errors"
	"iter"
	"net/http"

	"github.com/hashicorp-forge/dwclient/pkg/transport"
	"github.com/hashicorp-forge/dwclient/pkg/wire"
)

// Done is returned by Next when no results remain.
var Done = errors.New("no more results")

// Sender issues authenticated requests. *session.Manager implements it.
type Sender interface {
	Send(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// Iterator is a forward-only cursor over the results of one search. It is
// not safe for concurrent use, and it cannot be restarted: once Next has
// returned Done or an error, it keeps returning it.
type Iterator struct {
	sender Sender
	count  int

	page []*Record
	pos  int
	next string
	err  error
}

type resultPage struct {
	Count struct {
		Value int `mapstructure:"Value"`
	} `mapstructure:"Count"`
	Items []rawDocument `mapstructure:"Items"`
	Links wire.Links    `mapstructure:"Links"`
}

// Open fetches the first page at resultURL.
func Open(ctx context.Context, sender Sender, resultURL string) (*Iterator, error) {
	it := &Iterator{sender: sender}
	if err := it.fetch(ctx, resultURL); err != nil {
		return nil, err
	}
	return it, nil
}

// NewIterator creates an iterator from an already fetched first page.
func NewIterator(sender Sender, firstPage []byte) (*Iterator, error) {
	it := &Iterator{sender: sender}
	if err := it.load(firstPage); err != nil {
		return nil, err
	}
	return it, nil
}

// Count returns the total number of hits reported by the service.
func (it *Iterator) Count() int {
	return it.count
}

// Next returns the next record. It returns Done when the results are
// exhausted. Errors, including *session.SessionExpiredError, are returned
// as is and never retried.
func (it *Iterator) Next(ctx context.Context) (*Record, error) {
	if it.err != nil {
		return nil, it.err
	}

	for it.pos >= len(it.page) {
		if it.next == "" {
			it.finish(Done)
			return nil, Done
		}
		href := it.next
		if err := it.fetch(ctx, href); err != nil {
			it.finish(err)
			return nil, err
		}
		if len(it.page) == 0 && it.next == href {
			it.finish(Done)
			return nil, Done
		}
	}

	r := it.page[it.pos]
	it.page[it.pos] = nil
	it.pos++
	return r, nil
}

// All returns a range-over-func view of the remaining records. Iteration
// ends at exhaustion or after yielding the first error.
func (it *Iterator) All(ctx context.Context) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		for {
			r, err := it.Next(ctx)
			if errors.Is(err, Done) {
				return
			}
			if !yield(r, err) || err != nil {
				return
			}
		}
	}
}

// Err returns the error that ended the iteration, or nil if it ended
// normally or has not ended yet.
func (it *Iterator) Err() error {
	if errors.Is(it.err, Done) {
		return nil
	}
	return it.err
}

func (it *Iterator) fetch(ctx context.Context, href string) error {
	resp, err := it.sender.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   href,
		Header: http.Header{"Accept": {"application/json"}},
	})
	if err != nil {
		return err
	}
	return it.load(resp.Body)
}

func (it *Iterator) load(body []byte) error {
	var p resultPage
	if err := wire.Decode(body, &p); err != nil {
		return err
	}

	it.count = p.Count.Value
	it.page = make([]*Record, 0, len(p.Items))
	for _, item := range p.Items {
		it.page = append(it.page, item.record(it.sender))
	}
	it.pos = 0
	it.next, _ = p.Links.Href("next")
	return nil
}

func (it *Iterator) finish(err error) {
	it.err = err
	it.page = nil
	it.pos = 0
	it.next = ""
}
