package db

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UnifiedDB 統一的資料庫介面
// ExecTx 內拿到的 tx 也是 UnifiedDB, 所以 service 不需要知道底層是不是在交易中
type UnifiedDB interface {
	ExecTx(ctx context.Context, fn func(tx UnifiedDB) error) error

	IProductRepository
	ICartRepository
	IOrderRepository
	IReviewRepository
}

// IProductRepository Product 相關操作介面
// 庫存與評分欄位只能透過 ReserveStock / ReleaseStock / UpdateRatingSummary 修改
type IProductRepository interface {
	CreateProduct(ctx context.Context, product *model.Product) error
	GetProductByID(ctx context.Context, productID uint) (*model.Product, error)
	// ReserveStock 原子性扣庫存並增加銷量, 條件不符時回傳分類好的錯誤
	ReserveStock(ctx context.Context, productID uint, quantity int) (*model.Product, error)
	// ReleaseStock ReserveStock 的補償操作
	ReleaseStock(ctx context.Context, productID uint, quantity int) (*model.Product, error)
	UpdateRatingSummary(ctx context.Context, productID uint, average decimal.Decimal, count int) error
	// LockProductForUpdate 需在交易中呼叫, 商品列鎖到 commit 為止, 用來序列化評分重算
	LockProductForUpdate(ctx context.Context, productID uint) error
}

// ICartRepository Cart 相關操作介面
type ICartRepository interface {
	GetCartByUserID(ctx context.Context, userID int) (*model.Cart, error)
	// GetCartByUserIDForUpdate 需在交易中呼叫, 同一個 user 的結帳會在這裡排隊
	GetCartByUserIDForUpdate(ctx context.Context, userID int) (*model.Cart, error)
	GetOrCreateCart(ctx context.Context, userID int) (*model.Cart, error)
	// SaveCartItems 以 cart.Items 整批取代購物車內容
	SaveCartItems(ctx context.Context, cart *model.Cart) error
	ClearCart(ctx context.Context, userID int) error
}

// IOrderRepository Order 相關操作介面
// 狀態歷程只提供 append
type IOrderRepository interface {
	CreateOrder(ctx context.Context, order *model.Order) error
	OrderNumberExists(ctx context.Context, orderNumber string) (bool, error)
	GetOrderByID(ctx context.Context, orderID string) (*model.Order, error)
	// GetOrderByIDForUpdate 需在交易中呼叫, 會鎖住該筆訂單
	GetOrderByIDForUpdate(ctx context.Context, orderID string) (*model.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID int, key string) (*model.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int) ([]model.Order, error)
	GetAllOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, order *model.Order) error
	AppendStatusHistory(ctx context.Context, history *model.OrderStatusHistory) error
}

// IReviewRepository Review 相關操作介面
type IReviewRepository interface {
	CreateReview(ctx context.Context, review *model.Review) error
	GetReviewByID(ctx context.Context, reviewID uint) (*model.Review, error)
	GetReviewByUserAndProduct(ctx context.Context, userID int, productID uint) (*model.Review, error)
	ListReviewsByProduct(ctx context.Context, productID uint) ([]model.Review, error)
	ListRatingsByProduct(ctx context.Context, productID uint) ([]int, error)
	UpdateReview(ctx context.Context, review *model.Review) error
	DeleteReview(ctx context.Context, reviewID uint) error
}

// UnifiedDBImpl 統一資料庫實現
type UnifiedDBImpl struct {
	db    *gorm.DB
	dbDao *DbDao
	*ProductRepo
	*CartRepo
	*OrderRepo
	*ReviewRepo
}

func NewUnifiedDB(db *gorm.DB) *UnifiedDBImpl {
	dbDao := NewDbDao(db)
	return &UnifiedDBImpl{
		db:          db,
		dbDao:       dbDao,
		ProductRepo: NewProductRepo(dbDao),
		CartRepo:    NewCartRepo(dbDao),
		OrderRepo:   NewOrderRepo(dbDao),
		ReviewRepo:  NewReviewRepo(dbDao),
	}
}

func (u *UnifiedDBImpl) InitMigrate() error {
	return u.dbDao.InitMigrate()
}

func (u *UnifiedDBImpl) SeedCatalog(ctx context.Context, seed *CatalogSeed) error {
	return u.dbDao.SeedCatalog(ctx, seed)
}

func (u *UnifiedDBImpl) GetDB() *gorm.DB {
	return u.db
}

// ExecTx 在同一個交易內執行 fn, fn 回傳錯誤就整筆 rollback
// 已在交易中再呼叫時 gorm 會改用 savepoint
func (u *UnifiedDBImpl) ExecTx(ctx context.Context, fn func(tx UnifiedDB) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewUnifiedDB(tx))
	})
}

var _ UnifiedDB = (*UnifiedDBImpl)(nil)
