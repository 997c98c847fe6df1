package client

import (
	"context"

	oerrors "github.com/oba-ldap/oba/internal/errors"
	"github.com/oba-ldap/oba/internal/filter"
	"github.com/oba-ldap/oba/internal/ldap"
)

// SearchOptions describes a search request.
// Filter may be left empty if FilterTree is supplied directly, letting
// callers who already built a *filter.Filter (e.g. the object model)
// skip re-parsing it from a string.
type SearchOptions struct {
	BaseDN       string
	Scope        ldap.SearchScope
	DerefAliases ldap.DerefAliases
	SizeLimit    int
	TimeLimit    int
	TypesOnly    bool

	Filter     string
	FilterMode filter.Mode
	FilterTree *filter.Filter

	Attributes []string
	Controls   []ldap.Control
}

// SearchHandle represents one in-flight search: Items delivers entries,
// references, and intermediate responses in wire order, terminated by an
// item with Done set (success) or Err set (failure/abandon).
type SearchHandle struct {
	Items   <-chan *StreamItem
	abandon func() error
}

// Abandon cancels the search.
func (h *SearchHandle) Abandon() error {
	return h.abandon()
}

// Search issues a SearchRequest and returns a handle streaming results.
// The caller must drain Items until it is closed (observing a Done or Err
// item) or call Abandon, or the reader goroutine will block once the
// stream's backpressure window fills.
func (c *Connection) Search(ctx context.Context, opts SearchOptions) (*SearchHandle, error) {
	if err := c.gate(); err != nil {
		return nil, err
	}
	if err := c.checkControls(opts.Controls); err != nil {
		return nil, err
	}
	sf, err := resolveSearchFilter(opts, c.cfg.FilterMode)
	if err != nil {
		return nil, err
	}

	req := &ldap.SearchRequest{
		BaseObject:   opts.BaseDN,
		Scope:        opts.Scope,
		DerefAliases: opts.DerefAliases,
		SizeLimit:    opts.SizeLimit,
		TimeLimit:    opts.TimeLimit,
		TypesOnly:    opts.TypesOnly,
		Filter:       sf,
		Attributes:   opts.Attributes,
	}
	full, err := req.Encode()
	if err != nil {
		return nil, &oerrors.ProtocolError{Detail: "encode search request", Err: err}
	}
	body, err := stripOuterTag(full)
	if err != nil {
		return nil, &oerrors.ProtocolError{Detail: "normalize search request", Err: err}
	}

	w := &waiter{streamCh: make(chan *StreamItem, c.cfg.highWaterMark())}
	id, _, err := c.nextIDAndRegister(w)
	if err != nil {
		return nil, err
	}
	if err := c.write(id, ldap.ApplicationSearchRequest, body, opts.Controls); err != nil {
		c.removeWaiter(id)
		return nil, err
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = c.Abandon(int(id))
			case <-c.readerDone:
			}
		}()
	}

	return &SearchHandle{
		Items:   w.streamCh,
		abandon: func() error { return c.Abandon(int(id)) },
	}, nil
}

// resolveSearchFilter turns opts' filter into an *ldap.SearchFilter,
// preferring a pre-built FilterTree over re-parsing a string.
func resolveSearchFilter(opts SearchOptions, defaultMode filter.Mode) (*ldap.SearchFilter, error) {
	tree := opts.FilterTree
	if tree == nil {
		mode := opts.FilterMode
		if mode == 0 && defaultMode != 0 {
			mode = defaultMode
		}
		f, err := filter.ParseMode(opts.Filter, mode)
		if err != nil {
			return nil, &oerrors.FilterSyntaxError{Input: opts.Filter, Expected: "valid filter syntax"}
		}
		tree = f
	}
	return toSearchFilter(tree), nil
}

// toSearchFilter converts a parsed internal/filter.Filter into the
// internal/ldap wire representation; the two packages model the same
// grammar with independent types, internal/filter's AST carrying the
// text-level parse and render and internal/ldap's the BER encoding.
func toSearchFilter(f *filter.Filter) *ldap.SearchFilter {
	if f == nil {
		return nil
	}
	switch f.Type {
	case filter.FilterAnd, filter.FilterOr:
		tag := ldap.FilterTagAnd
		if f.Type == filter.FilterOr {
			tag = ldap.FilterTagOr
		}
		children := make([]*ldap.SearchFilter, 0, len(f.Children))
		for _, child := range f.Children {
			children = append(children, toSearchFilter(child))
		}
		return &ldap.SearchFilter{Type: tag, Children: children}

	case filter.FilterNot:
		return &ldap.SearchFilter{Type: ldap.FilterTagNot, Child: toSearchFilter(f.Child)}

	case filter.FilterEquality:
		return &ldap.SearchFilter{Type: ldap.FilterTagEquality, Attribute: f.Attribute, Value: f.Value}
	case filter.FilterGreaterOrEqual:
		return &ldap.SearchFilter{Type: ldap.FilterTagGreaterOrEqual, Attribute: f.Attribute, Value: f.Value}
	case filter.FilterLessOrEqual:
		return &ldap.SearchFilter{Type: ldap.FilterTagLessOrEqual, Attribute: f.Attribute, Value: f.Value}
	case filter.FilterApproxMatch:
		return &ldap.SearchFilter{Type: ldap.FilterTagApproxMatch, Attribute: f.Attribute, Value: f.Value}

	case filter.FilterPresent:
		return &ldap.SearchFilter{Type: ldap.FilterTagPresent, Attribute: f.Attribute}

	case filter.FilterSubstring:
		return &ldap.SearchFilter{
			Type:      ldap.FilterTagSubstrings,
			Attribute: f.Substring.Attribute,
			Substrings: &ldap.SubstringComponents{
				Initial: f.Substring.Initial,
				Any:     f.Substring.Any,
				Final:   f.Substring.Final,
			},
		}

	case filter.FilterExtensibleMatch:
		return &ldap.SearchFilter{
			Type: ldap.FilterTagExtensibleMatch,
			ExtensibleMatch: &ldap.ExtensibleMatchComponents{
				MatchingRule: f.MatchingRule,
				Type:         f.Attribute,
				MatchValue:   f.Value,
				DNAttributes: f.DNAttributes,
			},
		}

	default:
		return &ldap.SearchFilter{Type: ldap.FilterTagPresent, Attribute: "objectClass"}
	}
}

// decodeStreamItem parses one search-related LDAPMessage into a
// StreamItem. Parse failures are carried as Err rather than dropped so a
// ranging caller sees the failure instead of a silent gap.
func decodeStreamItem(msg *ldap.LDAPMessage) *StreamItem {
	switch msg.OperationType() {
	case ldap.ApplicationSearchResultEntry:
		entry, err := ldap.ParseSearchResultEntry(msg.Operation.Data)
		if err != nil {
			return &StreamItem{Err: &oerrors.ProtocolError{Detail: "parse search result entry", Err: err}}
		}
		return &StreamItem{Entry: entry, Controls: msg.Controls}

	case ldap.ApplicationSearchResultReference:
		ref, err := ldap.ParseSearchResultReference(msg.Operation.Data)
		if err != nil {
			return &StreamItem{Err: &oerrors.ProtocolError{Detail: "parse search result reference", Err: err}}
		}
		return &StreamItem{Reference: ref, Controls: msg.Controls}

	case ldap.ApplicationIntermediateResponse:
		ir, err := ldap.ParseIntermediateResponse(msg.Operation.Data)
		if err != nil {
			return &StreamItem{Err: &oerrors.ProtocolError{Detail: "parse intermediate response", Err: err}}
		}
		return &StreamItem{Intermediate: ir, Controls: msg.Controls}

	case ldap.ApplicationSearchResultDone:
		done, err := ldap.ParseSearchResultDone(msg.Operation.Data)
		if err != nil {
			return &StreamItem{Err: &oerrors.ProtocolError{Detail: "parse search result done", Err: err}}
		}
		if done.ResultCode == ldap.ResultReferral {
			return &StreamItem{Done: done, Controls: msg.Controls, Err: &oerrors.Referral{URLs: done.Referral}}
		}
		if done.ResultCode.IsError() {
			return &StreamItem{Done: done, Controls: msg.Controls, Err: resultError(done.LDAPResult)}
		}
		return &StreamItem{Done: done, Controls: msg.Controls}

	default:
		return &StreamItem{Err: &oerrors.ProtocolError{Detail: "unexpected message in search stream"}}
	}
}

// resultError converts a non-success LDAPResult into the typed error a
// caller dispatches on.
func resultError(r ldap.LDAPResult) error {
	if r.ResultCode == ldap.ResultSuccess {
		return nil
	}
	if r.ResultCode == ldap.ResultReferral {
		return &oerrors.Referral{URLs: r.Referral}
	}
	return &oerrors.OperationFailed{
		ResultCode:        int(r.ResultCode),
		ResultName:        r.ResultCode.String(),
		DiagnosticMessage: r.DiagnosticMessage,
		MatchedDN:         r.MatchedDN,
	}
}
