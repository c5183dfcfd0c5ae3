package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"cassa/internal/aggregate"
	"cassa/internal/auth"
	"cassa/internal/core"
	"cassa/internal/log"
)

// listResponse carries the filtered records with their totals.
type listResponse[T any] struct {
	Items    []T                    `json:"items"`
	Range    core.DateRange         `json:"range"`
	Count    int                    `json:"count"`
	Total    decimal.Decimal        `json:"total"`
	ByMethod aggregate.MethodTotals `json:"byMethod"`
}

func newListResponse[T aggregate.Entry](items []T, rng core.DateRange) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	byMethod := aggregate.ByPaymentMethod(items)
	return listResponse[T]{
		Items:    items,
		Range:    rng,
		Count:    len(items),
		Total:    byMethod.Total(),
		ByMethod: byMethod,
	}
}

func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		writeError(w, r, log.OpOnboard, err)
		return
	}
	t, err := core.ParseBusinessType(p.Get("type"))
	if err != nil {
		writeError(w, r, log.OpOnboard, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	owner, _ := auth.OwnerFromContext(ctx)
	b, err := s.ledger.Onboard(ctx, owner, p.Get("name"), t)
	if err != nil {
		writeError(w, r, log.OpOnboard, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(b).Write(w)
}

func (s *Server) handleGetBusiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()
	owner, _ := auth.OwnerFromContext(ctx)
	b, err := s.ledger.BusinessForOwner(ctx, owner)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(b).Write(w)
}

func (s *Server) handleUpdateBusiness(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	book, err := s.book(ctx)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	cur, err := book.Business(ctx)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	name, t := cur.Name, cur.Type
	if p.Has("name") {
		name = p.Get("name")
	}
	if p.Has("type") {
		if t, err = core.ParseBusinessType(p.Get("type")); err != nil {
			writeError(w, r, log.OpUpdate, err)
			return
		}
	}
	b, err := book.UpdateProfile(ctx, name, t)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(b).Write(w)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()
	book, err := s.book(ctx)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	bal, err := book.Balances(ctx)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(bal).Write(w)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()
	book, err := s.book(ctx)
	if err != nil {
		writeError(w, r, log.OpReconcile, err)
		return
	}
	rec, err := book.Reconcile(ctx)
	if err != nil {
		writeError(w, r, log.OpReconcile, err)
		return
	}
	NewJSONResponse().Data(rec).Write(w)
}

func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	rng, err := parseListRange(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	filter, err := parseSaleFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	book, err := s.book(ctx)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	sales, err := book.ListSales(ctx, rng)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(newListResponse(aggregate.Filter(sales, filter.Match), rng)).Write(w)
}

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	in, err := parseSaleInput(p, s.today())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	book, err := s.book(ctx)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	sale, err := book.CreateSale(ctx, in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(sale).Write(w)
}

func (s *Server) handleUpdateSale(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	patch, err := parseSalePatch(p)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	book, err := s.book(ctx)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	sale, err := book.UpdateSale(ctx, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(sale).Write(w)
}

func (s *Server) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()
	book, err := s.book(ctx)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := book.DeleteSale(ctx, r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	rng, err := parseListRange(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	filter, err := parseExpenseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	book, err := s.book(ctx)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	expenses, err := book.ListExpenses(ctx, rng)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(newListResponse(aggregate.Filter(expenses, filter.Match), rng)).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	in, err := parseExpenseInput(p, s.today())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	book, err := s.book(ctx)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	exp, err := book.CreateExpense(ctx, in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(exp).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	patch, err := parseExpensePatch(p)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	book, err := s.book(ctx)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	exp, err := book.UpdateExpense(ctx, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(exp).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()
	book, err := s.book(ctx)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := book.DeleteExpense(ctx, r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
