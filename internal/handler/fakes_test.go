package handler

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync/atomic"

	"github.com/eventbooker/eventbooker/internal/model"
	"github.com/eventbooker/eventbooker/internal/repository"
)

// txRecorder counts commits and rollbacks issued through the stub
// database, making transaction outcomes observable in tests.
type txRecorder struct {
	commits   atomic.Int32
	rollbacks atomic.Int32
}

// stubDB returns a real *sql.DB whose connections support only
// Begin/Commit/Rollback. The fake stores ignore the *sql.Tx they are
// handed, so no statements ever reach the driver.
func stubDB(rec *txRecorder) *sql.DB {
	return sql.OpenDB(stubConnector{rec: rec})
}

type stubConnector struct{ rec *txRecorder }

func (s stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn{rec: s.rec}, nil
}
func (s stubConnector) Driver() driver.Driver { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return nil, errors.New("open via connector") }

type stubConn struct{ rec *txRecorder }

func (stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("statements unsupported")
}
func (stubConn) Close() error                { return nil }
func (s stubConn) Begin() (driver.Tx, error) { return stubTx{rec: s.rec}, nil }

type stubTx struct{ rec *txRecorder }

func (t stubTx) Commit() error {
	t.rec.commits.Add(1)
	return nil
}

func (t stubTx) Rollback() error {
	t.rec.rollbacks.Add(1)
	return nil
}

// fakeEventStore serves events from a map.
type fakeEventStore struct {
	events map[uint64]model.Event
}

func (f *fakeEventStore) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return model.Event{}, repository.ErrEventNotFound
	}
	return ev, nil
}

// fakeTicketStore records inserts and payment updates.
type fakeTicketStore struct {
	db *sql.DB

	nextID    uint64
	created   []model.EventTicket
	createErr error

	applied      bool
	applyErr     error
	appliedID    uint64
	applyUpdates []repository.PaymentUpdate

	list    []model.EventTicket
	listErr error
}

func (f *fakeTicketStore) DB() *sql.DB { return f.db }

func (f *fakeTicketStore) CreateTx(ctx context.Context, tx *sql.Tx, t *model.EventTicket) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	t.ID = f.nextID
	t.PaymentStatus = model.PaymentStatusPending
	f.created = append(f.created, *t)
	return nil
}

func (f *fakeTicketStore) ApplyPaymentResultTx(ctx context.Context, tx *sql.Tx, ticketID uint64, u repository.PaymentUpdate) (bool, error) {
	f.appliedID = ticketID
	f.applyUpdates = append(f.applyUpdates, u)
	return f.applied, f.applyErr
}

func (f *fakeTicketStore) ListAll(ctx context.Context) ([]model.EventTicket, error) {
	return f.list, f.listErr
}

// fakePushStore records push-request inserts and resolves checkout ids
// from a map.
type fakePushStore struct {
	created    []model.PushRequest
	createErr  error
	byCheckout map[string]uint64
}

func (f *fakePushStore) CreateTx(ctx context.Context, tx *sql.Tx, p *model.PushRequest) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, *p)
	return nil
}

func (f *fakePushStore) TicketIDByCheckoutIDTx(ctx context.Context, tx *sql.Tx, checkoutRequestID string) (uint64, error) {
	id, ok := f.byCheckout[checkoutRequestID]
	if !ok {
		return 0, repository.ErrPushRequestNotFound
	}
	return id, nil
}
