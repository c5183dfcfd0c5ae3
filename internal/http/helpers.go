package http

import (
	"context"
	"net/http"
	"strings"

	"cassa/internal/auth"
	"cassa/internal/core"
	"cassa/internal/ledger"
	"cassa/internal/report"
)

// storeContext bounds a handler's store calls.
func (s *Server) storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.storeTimeout)
}

// today is the current business day in the configured location.
func (s *Server) today() core.Date {
	return report.TodayIn(s.now(), s.location)
}

// book resolves the ledger of the authenticated owner.
func (s *Server) book(ctx context.Context) (*ledger.Book, error) {
	owner, _ := auth.OwnerFromContext(ctx)
	return s.ledger.BookForOwner(ctx, owner)
}

// parseBody reads the request body; a malformed body is a 400.
func parseBody(r *http.Request) (*RequestBodyParser, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, errMalformedBody
	}
	return p, nil
}

// reportSession is the feed key of a report request, scoped by owner.
func reportSession(r *http.Request) string {
	session := strings.TrimSpace(r.Header.Get(HeaderReportSession))
	if session == "" {
		return ""
	}
	owner, _ := auth.OwnerFromContext(r.Context())
	return owner + "|" + session
}
