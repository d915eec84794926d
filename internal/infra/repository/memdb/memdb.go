// Package memdb 是 db.UnifiedDB 的記憶體實作
// 交易期間持有全域鎖, 失敗時還原交易開始前的快照
package memdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/shopspring/decimal"
)

type state struct {
	products      map[uint]model.Product
	carts         map[int]model.Cart
	orders        map[string]model.Order
	reviews       map[uint]model.Review
	nextProductID uint
	nextCartID    uint
	nextReviewID  uint
	nextHistoryID uint
}

func newState() *state {
	return &state{
		products: make(map[uint]model.Product),
		carts:    make(map[int]model.Cart),
		orders:   make(map[string]model.Order),
		reviews:  make(map[uint]model.Review),
	}
}

func (s *state) clone() *state {
	cp := &state{
		products:      make(map[uint]model.Product, len(s.products)),
		carts:         make(map[int]model.Cart, len(s.carts)),
		orders:        make(map[string]model.Order, len(s.orders)),
		reviews:       make(map[uint]model.Review, len(s.reviews)),
		nextProductID: s.nextProductID,
		nextCartID:    s.nextCartID,
		nextReviewID:  s.nextReviewID,
		nextHistoryID: s.nextHistoryID,
	}
	for k, v := range s.products {
		cp.products[k] = v
	}
	for k, v := range s.carts {
		cp.carts[k] = *v.Clone()
	}
	for k, v := range s.orders {
		cp.orders[k] = *v.Clone()
	}
	for k, v := range s.reviews {
		cp.reviews[k] = v
	}
	return cp
}

type Store struct {
	mu   *sync.Mutex
	data **state
	inTx bool
	now  func() time.Time
}

func New() *Store {
	data := newState()
	return &Store{
		mu:   &sync.Mutex{},
		data: &data,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) st() *state {
	return *s.data
}

func (s *Store) ExecTx(ctx context.Context, fn func(tx db.UnifiedDB) error) error {
	if s.inTx {
		snapshot := s.st().clone()
		if err := fn(s); err != nil {
			*s.data = snapshot
			return err
		}
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st().clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		*s.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		*s.data = snapshot
		return err
	}
	return nil
}

// Product

func (s *Store) CreateProduct(ctx context.Context, product *model.Product) error {
	defer s.lock()()
	st := s.st()
	for _, p := range st.products {
		if p.Code == product.Code {
			return db.ErrDuplicateProductCode
		}
	}
	if product.ProductID == 0 {
		st.nextProductID++
		product.ProductID = st.nextProductID
	} else if product.ProductID > st.nextProductID {
		st.nextProductID = product.ProductID
	}
	product.CreatedAt = s.now()
	st.products[product.ProductID] = *product
	return nil
}

func (s *Store) GetProductByID(ctx context.Context, productID uint) (*model.Product, error) {
	defer s.lock()()
	p, ok := s.st().products[productID]
	if !ok || p.DeletedAt.Valid {
		return nil, errs.NewNotFound("product", productID)
	}
	return &p, nil
}

func (s *Store) ReserveStock(ctx context.Context, productID uint, quantity int) (*model.Product, error) {
	defer s.lock()()
	st := s.st()
	p, ok := st.products[productID]
	if !ok || p.DeletedAt.Valid {
		return nil, errs.NewNotFound("product", productID)
	}
	if !p.IsActive {
		return nil, errs.NewProductUnavailable(productID, p.Name)
	}
	if p.Stock < quantity {
		return nil, errs.NewInsufficientStock(productID, p.Name, quantity, p.Stock)
	}
	p.Stock -= quantity
	p.SoldCount += quantity
	p.UpdatedAt = s.now()
	st.products[productID] = p
	return &p, nil
}

func (s *Store) ReleaseStock(ctx context.Context, productID uint, quantity int) (*model.Product, error) {
	defer s.lock()()
	st := s.st()
	p, ok := st.products[productID]
	if !ok {
		return nil, errs.NewNotFound("product", productID)
	}
	p.Stock += quantity
	p.SoldCount -= quantity
	if p.SoldCount < 0 {
		p.SoldCount = 0
	}
	p.UpdatedAt = s.now()
	st.products[productID] = p
	return &p, nil
}

// LockProductForUpdate 交易中本來就持有全域鎖, 只檢查商品存在
func (s *Store) LockProductForUpdate(ctx context.Context, productID uint) error {
	defer s.lock()()
	p, ok := s.st().products[productID]
	if !ok || p.DeletedAt.Valid {
		return errs.NewNotFound("product", productID)
	}
	return nil
}

func (s *Store) UpdateRatingSummary(ctx context.Context, productID uint, average decimal.Decimal, count int) error {
	defer s.lock()()
	st := s.st()
	p, ok := st.products[productID]
	if !ok || p.DeletedAt.Valid {
		return errs.NewNotFound("product", productID)
	}
	p.RatingAverage = average
	p.RatingCount = count
	p.UpdatedAt = s.now()
	st.products[productID] = p
	return nil
}

// UpdateProduct 只給測試模擬目錄端的異動 (下架, 改價)
func (s *Store) UpdateProduct(product *model.Product) {
	defer s.lock()()
	s.st().products[product.ProductID] = *product
}

// Cart

func (s *Store) GetCartByUserID(ctx context.Context, userID int) (*model.Cart, error) {
	defer s.lock()()
	c, ok := s.st().carts[userID]
	if !ok {
		return nil, errs.NewNotFound("cart", userID)
	}
	return c.Clone(), nil
}

func (s *Store) GetCartByUserIDForUpdate(ctx context.Context, userID int) (*model.Cart, error) {
	return s.GetCartByUserID(ctx, userID)
}

func (s *Store) GetOrCreateCart(ctx context.Context, userID int) (*model.Cart, error) {
	defer s.lock()()
	st := s.st()
	if c, ok := st.carts[userID]; ok {
		return c.Clone(), nil
	}
	st.nextCartID++
	c := model.Cart{CartID: st.nextCartID, UserID: userID}
	c.CreatedAt = s.now()
	st.carts[userID] = c
	return c.Clone(), nil
}

func (s *Store) SaveCartItems(ctx context.Context, cart *model.Cart) error {
	defer s.lock()()
	st := s.st()
	stored, ok := st.carts[cart.UserID]
	if !ok || stored.CartID != cart.CartID {
		return errs.NewNotFound("cart", cart.UserID)
	}
	items := make([]model.CartItem, len(cart.Items))
	for i, item := range cart.Items {
		item.CartID = cart.CartID
		items[i] = item
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	stored.Items = items
	stored.UpdatedAt = s.now()
	st.carts[cart.UserID] = stored
	return nil
}

func (s *Store) ClearCart(ctx context.Context, userID int) error {
	defer s.lock()()
	st := s.st()
	if c, ok := st.carts[userID]; ok {
		c.Items = nil
		c.UpdatedAt = s.now()
		st.carts[userID] = c
	}
	return nil
}

// Order

func (s *Store) CreateOrder(ctx context.Context, order *model.Order) error {
	defer s.lock()()
	st := s.st()
	for _, o := range st.orders {
		if o.OrderNumber == order.OrderNumber {
			return db.ErrDuplicateOrderNumber
		}
		if order.IdempotencyKey != "" && o.UserID == order.UserID && o.IdempotencyKey == order.IdempotencyKey {
			return db.ErrDuplicateIdempotencyKey
		}
	}
	now := s.now()
	order.CreatedAt = now
	for i := range order.Items {
		order.Items[i].OrderID = order.OrderID
	}
	for i := range order.StatusHistory {
		st.nextHistoryID++
		order.StatusHistory[i].ID = st.nextHistoryID
		order.StatusHistory[i].OrderID = order.OrderID
		if order.StatusHistory[i].CreatedAt.IsZero() {
			order.StatusHistory[i].CreatedAt = now
		}
	}
	st.orders[order.OrderID] = *order.Clone()
	return nil
}

func (s *Store) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	defer s.lock()()
	for _, o := range s.st().orders {
		if o.OrderNumber == orderNumber {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetOrderByID(ctx context.Context, orderID string) (*model.Order, error) {
	defer s.lock()()
	o, ok := s.st().orders[orderID]
	if !ok {
		return nil, errs.NewNotFound("order", orderID)
	}
	return o.Clone(), nil
}

// GetOrderByIDForUpdate 交易中本來就持有全域鎖
func (s *Store) GetOrderByIDForUpdate(ctx context.Context, orderID string) (*model.Order, error) {
	return s.GetOrderByID(ctx, orderID)
}

func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, userID int, key string) (*model.Order, error) {
	defer s.lock()()
	for _, o := range s.st().orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return o.Clone(), nil
		}
	}
	return nil, errs.NewNotFound("order", key)
}

func (s *Store) GetOrdersByUserID(ctx context.Context, userID int) ([]model.Order, error) {
	defer s.lock()()
	var orders []model.Order
	for _, o := range s.st().orders {
		if o.UserID == userID {
			orders = append(orders, *o.Clone())
		}
	}
	sortNewestFirst(orders)
	return orders, nil
}

func (s *Store) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	defer s.lock()()
	orders := make([]model.Order, 0, len(s.st().orders))
	for _, o := range s.st().orders {
		orders = append(orders, *o.Clone())
	}
	sortNewestFirst(orders)
	return orders, nil
}

func sortNewestFirst(orders []model.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].OrderNumber > orders[j].OrderNumber
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func (s *Store) UpdateOrderStatus(ctx context.Context, order *model.Order) error {
	defer s.lock()()
	st := s.st()
	stored, ok := st.orders[order.OrderID]
	if !ok {
		return errs.NewNotFound("order", order.OrderID)
	}
	updated := order.Clone()
	stored.Status = updated.Status
	stored.PaymentStatus = updated.PaymentStatus
	stored.CancelledAt = updated.CancelledAt
	stored.DeliveredAt = updated.DeliveredAt
	stored.UpdatedAt = s.now()
	st.orders[order.OrderID] = stored
	return nil
}

func (s *Store) AppendStatusHistory(ctx context.Context, history *model.OrderStatusHistory) error {
	defer s.lock()()
	st := s.st()
	stored, ok := st.orders[history.OrderID]
	if !ok {
		return errs.NewNotFound("order", history.OrderID)
	}
	st.nextHistoryID++
	history.ID = st.nextHistoryID
	if history.CreatedAt.IsZero() {
		history.CreatedAt = s.now()
	}
	stored.StatusHistory = append(stored.StatusHistory, *history)
	st.orders[history.OrderID] = stored
	return nil
}

// Review

func (s *Store) CreateReview(ctx context.Context, review *model.Review) error {
	defer s.lock()()
	st := s.st()
	for _, r := range st.reviews {
		if r.UserID == review.UserID && r.ProductID == review.ProductID {
			return errs.ErrDuplicateReview
		}
	}
	st.nextReviewID++
	review.ReviewID = st.nextReviewID
	review.CreatedAt = s.now()
	st.reviews[review.ReviewID] = *review
	return nil
}

func (s *Store) GetReviewByID(ctx context.Context, reviewID uint) (*model.Review, error) {
	defer s.lock()()
	r, ok := s.st().reviews[reviewID]
	if !ok {
		return nil, errs.NewNotFound("review", reviewID)
	}
	return &r, nil
}

func (s *Store) GetReviewByUserAndProduct(ctx context.Context, userID int, productID uint) (*model.Review, error) {
	defer s.lock()()
	for _, r := range s.st().reviews {
		if r.UserID == userID && r.ProductID == productID {
			return &r, nil
		}
	}
	return nil, errs.NewNotFound("review", productID)
}

func (s *Store) ListReviewsByProduct(ctx context.Context, productID uint) ([]model.Review, error) {
	defer s.lock()()
	var reviews []model.Review
	for _, r := range s.st().reviews {
		if r.ProductID == productID {
			reviews = append(reviews, r)
		}
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].ReviewID > reviews[j].ReviewID })
	return reviews, nil
}

func (s *Store) ListRatingsByProduct(ctx context.Context, productID uint) ([]int, error) {
	defer s.lock()()
	var ratings []int
	for _, r := range s.st().reviews {
		if r.ProductID == productID {
			ratings = append(ratings, r.Rating)
		}
	}
	return ratings, nil
}

func (s *Store) UpdateReview(ctx context.Context, review *model.Review) error {
	defer s.lock()()
	st := s.st()
	stored, ok := st.reviews[review.ReviewID]
	if !ok {
		return errs.NewNotFound("review", review.ReviewID)
	}
	stored.Rating = review.Rating
	stored.Comment = review.Comment
	stored.Reply = review.Reply
	stored.RepliedBy = review.RepliedBy
	stored.RepliedAt = review.RepliedAt
	stored.UpdatedAt = s.now()
	st.reviews[review.ReviewID] = stored
	return nil
}

func (s *Store) DeleteReview(ctx context.Context, reviewID uint) error {
	defer s.lock()()
	st := s.st()
	if _, ok := st.reviews[reviewID]; !ok {
		return errs.NewNotFound("review", reviewID)
	}
	delete(st.reviews, reviewID)
	return nil
}

var _ db.UnifiedDB = (*Store)(nil)
