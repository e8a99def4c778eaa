package service

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"petshop-kart/internal/events"
	"petshop-kart/internal/model"
	"petshop-kart/internal/notify"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memStore is an in-memory stand-in for the Postgres stores. Writes made
// through a memTx only become visible on Commit.
type memStore struct {
	mu          sync.Mutex
	products    map[string]model.Product
	cart        []model.CartLine
	orders      map[uuid.UUID]model.Order
	orderLines  map[uuid.UUID][]model.OrderLine
	adjustments []model.StockAdjustment
	calls       map[string]int
	failures    map[string]error
}

func newMemStore(products ...model.Product) *memStore {
	s := &memStore{
		products:   make(map[string]model.Product),
		orders:     make(map[uuid.UUID]model.Order),
		orderLines: make(map[uuid.UUID][]model.OrderLine),
		calls:      make(map[string]int),
		failures:   make(map[string]error),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// record counts a call and returns the failure injected for op, if any.
// Callers hold s.mu.
func (s *memStore) record(op string, keys ...string) error {
	s.calls[op]++
	if err := s.failures[op]; err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.failures[op+":"+k]; err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *memStore) callCount(ops ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, op := range ops {
		n += s.calls[op]
	}
	return n
}

func (s *memStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) begin() (pgx.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("BeginTx"); err != nil {
		return nil, err
	}
	return &memTx{store: s}, nil
}

type memTx struct {
	pgx.Tx
	store *memStore
	ops   []func()
	done  bool
}

func (t *memTx) stage(op func()) {
	t.ops = append(t.ops, op)
}

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if err := t.store.record("Commit"); err != nil {
		return err
	}
	for _, op := range t.ops {
		op()
	}
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.ops = nil
	return nil
}

type memCarts struct{ *memStore }

func (r memCarts) AddOrIncrement(_ context.Context, line *model.CartLine) (*model.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("AddOrIncrement"); err != nil {
		return nil, err
	}
	for i := range r.cart {
		if r.cart[i].CustomerID == line.CustomerID && r.cart[i].ProductID == line.ProductID {
			r.cart[i].Quantity += line.Quantity
			stored := r.cart[i]
			return &stored, nil
		}
	}
	stored := *line
	stored.ID = uuid.New()
	stored.AddedAt = time.Now()
	r.cart = append(r.cart, stored)
	return &stored, nil
}

func (r memCarts) find(customerID string, lineID uuid.UUID) int {
	return slices.IndexFunc(r.cart, func(l model.CartLine) bool {
		return l.ID == lineID && l.CustomerID == customerID
	})
}

func (r memCarts) GetLine(_ context.Context, customerID string, lineID uuid.UUID) (*model.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("GetLine"); err != nil {
		return nil, err
	}
	i := r.find(customerID, lineID)
	if i < 0 {
		return nil, nil
	}
	line := r.cart[i]
	return &line, nil
}

func (r memCarts) UpdateQuantity(_ context.Context, customerID string, lineID uuid.UUID, quantity int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("UpdateQuantity"); err != nil {
		return false, err
	}
	if quantity < 1 {
		return false, errors.New("violates check constraint cart_lines_quantity_check")
	}
	i := r.find(customerID, lineID)
	if i < 0 {
		return false, nil
	}
	r.cart[i].Quantity = quantity
	return true, nil
}

func (r memCarts) DeleteLine(_ context.Context, customerID string, lineID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("DeleteLine"); err != nil {
		return false, err
	}
	i := r.find(customerID, lineID)
	if i < 0 {
		return false, nil
	}
	r.cart = slices.Delete(r.cart, i, i+1)
	return true, nil
}

func (r memCarts) DeleteByCustomer(_ context.Context, customerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("DeleteByCustomer"); err != nil {
		return 0, err
	}
	before := len(r.cart)
	r.cart = slices.DeleteFunc(r.cart, func(l model.CartLine) bool { return l.CustomerID == customerID })
	return int64(before - len(r.cart)), nil
}

func (r memCarts) ListByCustomer(_ context.Context, customerID string) ([]model.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("ListByCustomer"); err != nil {
		return nil, err
	}
	lines := []model.CartLine{}
	for _, l := range r.cart {
		if l.CustomerID == customerID {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// pausingCarts holds the first ListByCustomer after it has read the store
// until release is closed, then fails it if the caller's context ended in the
// meantime, as a database driver would.
type pausingCarts struct {
	memCarts
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newPausingCarts(store *memStore) *pausingCarts {
	return &pausingCarts{
		memCarts: memCarts{store},
		read:     make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (r *pausingCarts) ListByCustomer(ctx context.Context, customerID string) ([]model.CartLine, error) {
	lines, err := r.memCarts.ListByCustomer(ctx, customerID)
	paused := false
	r.once.Do(func() {
		paused = true
		close(r.read)
		<-r.release
	})
	if paused && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return lines, err
}

type memProducts struct{ *memStore }

func (r memProducts) GetAll(_ context.Context, limit, offset int) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	if offset >= len(all) {
		return []model.Product{}, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (r memProducts) GetByID(_ context.Context, id string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("GetProduct", id); err != nil {
		return nil, err
	}
	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memProducts) GetByIDs(_ context.Context, ids []string) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("GetByIDs", ids...); err != nil {
		return nil, err
	}
	out := []model.Product{}
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memProducts) Upsert(_ context.Context, product *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("Upsert"); err != nil {
		return err
	}
	r.products[product.ID] = *product
	return nil
}

func (r memProducts) DecrementStock(_ context.Context, tx pgx.Tx, id string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("DecrementStock", id); err != nil {
		return err
	}
	p, ok := r.products[id]
	if !ok || p.Stock < quantity {
		return model.ErrStockConflict
	}
	tx.(*memTx).stage(func() {
		p := r.products[id]
		p.Stock -= quantity
		r.products[id] = p
	})
	return nil
}

type memOrders struct{ *memStore }

func (r memOrders) BeginTx(context.Context) (pgx.Tx, error) {
	return r.begin()
}

func (r memOrders) CreateOrder(_ context.Context, tx pgx.Tx, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("CreateOrder"); err != nil {
		return err
	}
	o := *order
	tx.(*memTx).stage(func() { r.orders[o.ID] = o })
	return nil
}

func (r memOrders) CreateOrderLines(_ context.Context, tx pgx.Tx, lines []model.OrderLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("CreateOrderLines"); err != nil {
		return err
	}
	staged := slices.Clone(lines)
	tx.(*memTx).stage(func() {
		for _, l := range staged {
			r.orderLines[l.OrderID] = append(r.orderLines[l.OrderID], l)
		}
	})
	return nil
}

func (r memOrders) GetByID(_ context.Context, id uuid.UUID) (*model.Order, []model.OrderLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil, nil
	}
	return &o, slices.Clone(r.orderLines[id]), nil
}

func (r memOrders) ListByCustomer(_ context.Context, customerID string, limit, offset int) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r memOrders) ListAll(_ context.Context, limit, offset int) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		out = append(out, o)
	}
	return out, nil
}

type memAdjustments struct{ *memStore }

func (r memAdjustments) BeginTx(context.Context) (pgx.Tx, error) {
	return r.begin()
}

func (r memAdjustments) Create(_ context.Context, tx pgx.Tx, adjustments []model.StockAdjustment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("CreateAdjustments"); err != nil {
		return err
	}
	staged := slices.Clone(adjustments)
	tx.(*memTx).stage(func() { r.adjustments = append(r.adjustments, staged...) })
	return nil
}

func (r memAdjustments) MarkApplied(_ context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("MarkApplied"); err != nil {
		return false, err
	}
	i := slices.IndexFunc(r.adjustments, func(a model.StockAdjustment) bool { return a.ID == id })
	if i < 0 || r.adjustments[i].AppliedAt != nil {
		return false, nil
	}
	tx.(*memTx).stage(func() {
		now := time.Now()
		r.adjustments[i].AppliedAt = &now
		r.adjustments[i].Attempts++
	})
	return true, nil
}

func (r memAdjustments) RecordFailure(_ context.Context, id uuid.UUID, cause string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("RecordFailure"); err != nil {
		return err
	}
	for i := range r.adjustments {
		if r.adjustments[i].ID == id {
			r.adjustments[i].Attempts++
			r.adjustments[i].LastError = &cause
		}
	}
	return nil
}

func (r memAdjustments) Pending(_ context.Context, limit int) ([]model.StockAdjustment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.StockAdjustment{}
	for _, a := range r.adjustments {
		if a.AppliedAt == nil {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Attempts < out[j].Attempts })
	return out[:min(limit, len(out))], nil
}

func (r memAdjustments) CountPending(ctx context.Context) (int, error) {
	pending, err := r.Pending(ctx, len(r.adjustments)+1)
	return len(pending), err
}

type recordingSink struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (s *recordingSink) Notify(_ context.Context, n notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
}

func (s *recordingSink) last() notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.got) == 0 {
		return notify.Notification{}
	}
	return s.got[len(s.got)-1]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// stalledPublisher never reaches a broker; each Publish waits for its
// context to end.
type stalledPublisher struct {
	calls atomic.Int32
}

func (p *stalledPublisher) Publish(ctx context.Context, _ events.Event) error {
	p.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (a *recordingAlerter) Alert(_ context.Context, subject, body string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, subject+": "+body)
	return nil
}
