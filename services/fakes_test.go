package services_test

import (
	"context"
	"sync"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/cache"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/integration"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/repository"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/storage"
)

// --- Product store ---

type fakeProducts struct {
	mu       sync.Mutex
	products map[int64]*models.Product
	// beforeUpdate runs ahead of Update, outside the lock.
	beforeUpdate func()
}

func newFakeProducts(ps ...models.Product) *fakeProducts {
	f := &fakeProducts{products: map[int64]*models.Product{}}
	for i := range ps {
		p := ps[i]
		f.products[p.ProductID] = &p
	}
	return f
}

func (f *fakeProducts) stock(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

func (f *fakeProducts) Create(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[p.ProductID]; ok {
		return repository.ErrDuplicate
	}
	cp := *p
	f.products[p.ProductID] = &cp
	return nil
}

func (f *fakeProducts) FindByID(_ context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || p.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) FindAll(_ context.Context, filter repository.ProductFilter, page, limit int) ([]models.Product, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, p := range f.products {
		if p.DeletedAt != nil {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (f *fakeProducts) Update(_ context.Context, p *models.Product) error {
	if f.beforeUpdate != nil {
		f.beforeUpdate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.products[p.ProductID]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *p
	cp.Stock = cur.Stock
	f.products[p.ProductID] = &cp
	return nil
}

func (f *fakeProducts) SetStock(_ context.Context, id int64, stock int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || p.DeletedAt != nil {
		return repository.ErrNotFound
	}
	p.Stock = stock
	return nil
}

func (f *fakeProducts) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || p.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := p.UpdatedAt
	p.DeletedAt = &now
	return nil
}

func (f *fakeProducts) DecrementStock(_ context.Context, id int64, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Stock < qty {
		return repository.ErrInsufficientStock
	}
	p.Stock -= qty
	return nil
}

func (f *fakeProducts) IncrementStock(_ context.Context, id int64, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Stock += qty
	return nil
}

func (f *fakeProducts) SetImage(_ context.Context, id int64, key, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.ImageKey, p.ImageContentType = key, contentType
	return nil
}

// --- Order store ---

type fakeOrders struct {
	mu         sync.Mutex
	orders     map[int64]*models.Order
	createErr  error
	succeedErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[int64]*models.Order{}}
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeOrders) get(id int64) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneOrder(f.orders[id])
}

func (f *fakeOrders) put(o *models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.OrderID] = cloneOrder(o)
}

func (f *fakeOrders) byGateway(gid string) *models.Order {
	for _, o := range f.orders {
		if o.GatewayOrderID == gid {
			return o
		}
	}
	return nil
}

func (f *fakeOrders) Create(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.orders[o.OrderID]; ok {
		return repository.ErrDuplicate
	}
	f.orders[o.OrderID] = cloneOrder(o)
	return nil
}

func (f *fakeOrders) FindByID(_ context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (f *fakeOrders) FindByGatewayOrderID(_ context.Context, gid string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.byGateway(gid)
	if o == nil {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (f *fakeOrders) FindAll(_ context.Context, filter repository.OrderFilter, page, limit int) ([]models.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	return out, int64(len(out)), nil
}

func (f *fakeOrders) MarkPaymentSucceeded(_ context.Context, gid, paymentID string, signature *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.succeedErr != nil {
		return false, f.succeedErr
	}
	o := f.byGateway(gid)
	if o == nil || o.Status != models.StatusPending || !o.PaymentStatus.Payable() {
		return false, nil
	}
	o.PaymentStatus = models.PaymentSuccessful
	o.Status = models.StatusProcessing
	o.GatewayPaymentID = &paymentID
	o.GatewaySignature = signature
	o.StockAdjusted = true
	return true, nil
}

func (f *fakeOrders) MarkPaymentFailed(_ context.Context, gid, paymentID string, signature *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.byGateway(gid)
	if o == nil || !o.PaymentStatus.Payable() {
		return false, nil
	}
	o.PaymentStatus = models.PaymentFailed
	o.GatewayPaymentID = &paymentID
	o.GatewaySignature = signature
	return true, nil
}

func (f *fakeOrders) SetStockAdjusted(_ context.Context, id int64, value bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.StockAdjusted == value {
		return false, nil
	}
	if value && o.PaymentStatus != models.PaymentSuccessful {
		return false, nil
	}
	o.StockAdjusted = value
	return true, nil
}

func (f *fakeOrders) Cancel(_ context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !o.Status.Cancellable() {
		return nil, repository.ErrNotCancellable
	}
	before := cloneOrder(o)
	o.Status = models.StatusCancelled
	o.StockAdjusted = false
	if o.PaymentStatus == models.PaymentSuccessful {
		o.PaymentStatus = models.PaymentRefunded
	}
	return before, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id int64, update repository.StatusUpdate) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if (update.Status != nil && !update.Status.Valid()) || (update.PaymentStatus != nil && !update.PaymentStatus.Valid()) {
		return nil, repository.ErrInvalidStatus
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.Status != nil {
		o.Status = *update.Status
	}
	if update.PaymentStatus != nil {
		o.PaymentStatus = *update.PaymentStatus
	}
	return cloneOrder(o), nil
}

func (f *fakeOrders) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

// --- Collaborators ---

type fakeSequence struct {
	mu   sync.Mutex
	next map[string]int64
}

func (f *fakeSequence) NextID(_ context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next == nil {
		f.next = map[string]int64{}
	}
	f.next[name]++
	return f.next[name], nil
}

type fakeGateway struct {
	mu    sync.Mutex
	err   error
	calls []integration.RemoteOrderRequest
}

func (f *fakeGateway) CreateRemoteOrder(ctx context.Context, req integration.RemoteOrderRequest) (*integration.RemoteOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &integration.RemoteOrder{ID: "order_gw_" + req.Receipt, Amount: req.Amount, Currency: req.Currency, Status: "created"}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (f *fakePublisher) Publish(_ context.Context, evt models.OrderEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []models.ReconcileJob
}

func (f *fakeJobs) Enqueue(_ context.Context, job models.ReconcileJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeIdempotency struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (f *fakeIdempotency) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeIdempotency) Save(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	if _, ok := f.data[key]; !ok {
		f.data[key] = value
	}
	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	products    map[int64]models.Product
	invalidated []int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{products: map[int64]models.Product{}}
}

func (f *fakeCache) GetProduct(_ context.Context, id int64) (*models.Product, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, false
	}
	return &p, true
}

func (f *fakeCache) SetProduct(_ context.Context, p *models.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ProductID] = *p
}

func (f *fakeCache) GetList(context.Context, repository.ProductFilter, int, int) (*cache.ProductList, bool) {
	return nil, false
}

func (f *fakeCache) SetList(context.Context, repository.ProductFilter, int, int, *cache.ProductList) {}

func (f *fakeCache) InvalidateProduct(_ context.Context, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, id)
	f.invalidated = append(f.invalidated, id)
}

type fakeImages struct {
	blobs map[string][]byte
	types map[string]string
}

func newFakeImages() *fakeImages {
	return &fakeImages{blobs: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeImages) Put(_ context.Context, key string, data []byte, contentType string) error {
	f.blobs[key], f.types[key] = data, contentType
	return nil
}

func (f *fakeImages) Get(_ context.Context, key string) ([]byte, string, error) {
	data, ok := f.blobs[key]
	if !ok {
		return nil, "", storage.ErrImageNotFound
	}
	return data, f.types[key], nil
}

func (f *fakeImages) Delete(_ context.Context, key string) error {
	delete(f.blobs, key)
	delete(f.types, key)
	return nil
}
