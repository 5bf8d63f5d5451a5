package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baresync/comanda/internal/dispatch"
	"github.com/baresync/comanda/internal/model"
	"github.com/baresync/comanda/internal/order"
	"github.com/baresync/comanda/internal/repository"
)

// staticCatalog serves a fixed product list, standing in for MySQL.
type staticCatalog struct {
	products map[uint64]model.Product
}

func (s *staticCatalog) GetProducts(_ context.Context, _ uint64) ([]model.Product, error) {
	out := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *staticCatalog) GetProductsByID(_ context.Context, _ uint64, ids []uint64) (map[uint64]model.Product, error) {
	out := make(map[uint64]model.Product, len(ids))
	for _, id := range ids {
		p, ok := s.products[id]
		if !ok {
			return nil, repository.ErrProductNotFound
		}
		out[id] = p
	}
	return out, nil
}

type fixture struct {
	e          *echo.Echo
	registry   *order.Registry
	dispatcher *dispatch.Dispatcher
	client     *ClientHandler
	staff      *StaffHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d := dispatch.New()
	r := order.NewRegistry(d, order.NopArchiver{})
	t.Cleanup(func() { r.Stop(); d.Stop() })

	cat := &staticCatalog{products: map[uint64]model.Product{
		1: {ID: 1, BarID: 1, Name: "Lager", UnitPriceCents: 450, Available: true},
		2: {ID: 2, BarID: 1, Name: "Cola", UnitPriceCents: 300, Available: true},
	}}
	return &fixture{
		e:          echo.New(),
		registry:   r,
		dispatcher: d,
		client:     NewClientHandler(r, d, cat, nil),
		staff:      NewStaffHandler(r, d, nil),
	}
}

// do runs one request through a handler with the path params and the
// authenticated participant id the middleware would normally set.
func (f *fixture) do(t *testing.T, h echo.HandlerFunc, method, target, body, pid string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	if pid != "" {
		c.Set("user_id", pid)
		c.Set("role", "CLIENT")
	}
	var names, values []string
	for k, v := range params {
		names = append(names, k)
		values = append(values, v)
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	require.NoError(t, h(c))
	return rec
}

var tableParams = map[string]string{"barID": "1", "tableID": "7"}

func TestJoinSubmitReviewAckOverHTTP(t *testing.T) {
	f := newFixture(t)

	// Join creates the session and returns a snapshot.
	rec := f.do(t, f.client.Join, http.MethodPost, "/", "", "ana", tableParams)
	require.Equal(t, http.StatusOK, rec.Code)

	// Submit three beers.
	rec = f.do(t, f.client.Submit, http.MethodPost, "/",
		`{"lines":[{"product_id":1,"qty":3}]}`, "ana", tableParams)
	require.Equal(t, http.StatusCreated, rec.Code)
	var ticket model.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket))
	assert.Equal(t, uint64(1), ticket.Seq)
	assert.Equal(t, int64(450), ticket.Lines[0].UnitPriceCents) // server-side price

	// Staff adjusts down to one.
	ticketParams := map[string]string{"barID": "1", "tableID": "7", "seq": "1"}
	rec = f.do(t, f.staff.Review, http.MethodPost, "/",
		`{"decisions":[{"product_id":1,"confirmed_qty":1,"available":true}]}`, "staff-1", ticketParams)
	require.Equal(t, http.StatusOK, rec.Code)
	var adjusted model.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &adjusted))
	assert.Equal(t, model.TicketAwaitingClientAck, adjusted.State)
	assert.Equal(t, uint64(1), adjusted.Revision)

	// A stale ack maps to 409.
	rec = f.do(t, f.client.Ack, http.MethodPost, "/", `{"revision":0}`, "ana", ticketParams)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The correct revision confirms the ticket.
	rec = f.do(t, f.client.Ack, http.MethodPost, "/", `{"revision":1}`, "ana", ticketParams)
	require.Equal(t, http.StatusOK, rec.Code)

	// The snapshot shows the reconciled total.
	rec = f.do(t, f.client.Snapshot, http.MethodGet, "/", "", "ana", tableParams)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap model.SessionSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(450), snap.RunningTotalCents)

	// Both the submitter and the staff channel saw every transition.
	rec = f.do(t, f.client.Events, http.MethodGet, "/?after=0", "", "ana", tableParams)
	require.Equal(t, http.StatusOK, rec.Code)
	var feed struct {
		Events []model.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	require.Len(t, feed.Events, 3) // submitted, reviewed, confirmed
	assert.Equal(t, model.EventTicketSubmitted, feed.Events[0].Type)
	assert.Equal(t, model.EventTicketConfirmed, feed.Events[2].Type)
	assert.Len(t, f.dispatcher.Poll(order.StaffRecipient(1), 0), 3)
}

func TestEmptyEventFeedRendersAsArray(t *testing.T) {
	f := newFixture(t)
	f.do(t, f.client.Join, http.MethodPost, "/", "", "ana", tableParams)

	// A cursor past the last event leaves nothing to return; the JSON
	// shape must stay an array so clients can iterate unconditionally.
	rec := f.do(t, f.client.Events, http.MethodGet, "/?after=999", "", "ana", tableParams)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[]}`, rec.Body.String())

	rec = f.do(t, f.staff.Events, http.MethodGet, "/?after=999", "", "staff-1", map[string]string{"barID": "1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
}

func TestSubmitUnknownProductOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.do(t, f.client.Join, http.MethodPost, "/", "", "ana", tableParams)

	rec := f.do(t, f.client.Submit, http.MethodPost, "/",
		`{"lines":[{"product_id":99,"qty":1}]}`, "ana", tableParams)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown_product")
}

func TestSubmitWithoutJoinOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, f.client.Submit, http.MethodPost, "/",
		`{"lines":[{"product_id":1,"qty":1}]}`, "ana", tableParams)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "session_not_found")
}

func TestSettleWithoutChargerOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.do(t, f.client.Join, http.MethodPost, "/", "", "ana", tableParams)

	rec := f.do(t, f.staff.Settle, http.MethodPost, "/", `{"method":"card"}`, "staff-1", tableParams)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHistoryWithoutArchiveOverHTTP(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, f.client.History, http.MethodGet, "/", "", "ana", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
