package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	tableOrders     = "orders"
	tableOrderItems = "order_items"
	tableProducts   = "products"

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	preferRepresentation = "return=representation"
	preferMinimal        = "return=minimal"
	singleObject         = "application/vnd.pgrst.object+json"
)

// OrderStore пишет шапки и позиции заказов через PostgREST под токеном пользователя.
type OrderStore struct {
	client *Client
}

// NewOrderStore создаёт хранилище заказов.
func NewOrderStore(client *Client) *OrderStore {
	return &OrderStore{client: client}
}

type orderHeaderRow struct {
	UserID string       `json:"user_id"`
	Total  domain.Money `json:"total"`
}

type headerReceiptRow struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type orderItemRow struct {
	OrderID   string       `json:"order_id"`
	ProductID string       `json:"product_id"`
	Quantity  int          `json:"quantity"`
	Price     domain.Money `json:"price"`
}

func (s *OrderStore) InsertHeader(ctx context.Context, header domain.OrderHeader) (domain.HeaderReceipt, error) {
	if header.UserID == "" {
		return domain.HeaderReceipt{}, domain.ErrLoginRequired
	}

	var row headerReceiptRow
	err := s.client.do(ctx, request{
		method: http.MethodPost,
		url:    s.client.tableURL(tableOrders, url.Values{"select": {"id,created_at"}}),
		token:  userToken(ctx),
		body:   orderHeaderRow{UserID: header.UserID, Total: header.Total},
		headers: map[string]string{
			"Prefer": preferRepresentation,
			"Accept": singleObject,
		},
	}, &row)
	if err != nil {
		return domain.HeaderReceipt{}, fmt.Errorf("insert order header: %w", err)
	}
	if row.ID == "" {
		return domain.HeaderReceipt{}, fmt.Errorf("insert order header: empty id in response")
	}
	return domain.HeaderReceipt{ID: row.ID, CreatedAt: row.CreatedAt.UTC()}, nil
}

// InsertLineItems отправляет все позиции одним bulk-insert: PostgREST выполняет
// его в одной транзакции.
func (s *OrderStore) InsertLineItems(ctx context.Context, items []domain.OrderLineItem) error {
	if len(items) == 0 {
		return domain.ErrItemsRequired
	}

	rows := make([]orderItemRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, orderItemRow{
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	err := s.client.do(ctx, request{
		method:  http.MethodPost,
		url:     s.client.tableURL(tableOrderItems, nil),
		token:   userToken(ctx),
		body:    rows,
		headers: map[string]string{"Prefer": preferMinimal},
	}, nil)
	if err != nil {
		if code, _, ok := apiErrorCode(err); ok && code == pgForeignKeyViolation {
			return fmt.Errorf("insert order items: %w", domain.ErrOrderNotFound)
		}
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (s *OrderStore) DeleteHeader(ctx context.Context, orderID string) error {
	if _, err := uuid.Parse(orderID); err != nil {
		return domain.ErrOrderNotFound
	}

	var deleted []headerReceiptRow
	err := s.client.do(ctx, request{
		method:  http.MethodDelete,
		url:     s.client.tableURL(tableOrders, url.Values{"id": {"eq." + orderID}, "select": {"id,created_at"}}),
		token:   userToken(ctx),
		headers: map[string]string{"Prefer": preferRepresentation},
	}, &deleted)
	if err != nil {
		return fmt.Errorf("delete order header: %w", err)
	}
	if len(deleted) == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// CatalogRepository работает с таблицей products через PostgREST.
type CatalogRepository struct {
	client *Client
}

// NewCatalogRepository создаёт PostgREST-каталог.
func NewCatalogRepository(client *Client) *CatalogRepository {
	return &CatalogRepository{client: client}
}

func (r *CatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := r.client.do(ctx, request{
		method: http.MethodGet,
		url:    r.client.tableURL(tableProducts, url.Values{"select": {"*"}, "order": {"created_at.asc,id.asc"}}),
		token:  userToken(ctx),
	}, &products)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	var created domain.Product
	err := r.client.do(ctx, request{
		method: http.MethodPost,
		url:    r.client.tableURL(tableProducts, nil),
		token:  userToken(ctx),
		body:   p,
		headers: map[string]string{
			"Prefer": preferRepresentation,
			"Accept": singleObject,
		},
	}, &created)
	if err != nil {
		if code, _, ok := apiErrorCode(err); ok && code == pgUniqueViolation {
			return domain.Product{}, domain.ErrProductExists
		}
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

func (r *CatalogRepository) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	var updated []domain.Product
	err := r.client.do(ctx, request{
		method:  http.MethodPatch,
		url:     r.client.tableURL(tableProducts, url.Values{"id": {"eq." + p.ID}}),
		token:   userToken(ctx),
		body:    p,
		headers: map[string]string{"Prefer": preferRepresentation},
	}, &updated)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	if len(updated) == 0 {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return updated[0], nil
}

func (r *CatalogRepository) DeleteProduct(ctx context.Context, id string) error {
	var deleted []domain.Product
	err := r.client.do(ctx, request{
		method:  http.MethodDelete,
		url:     r.client.tableURL(tableProducts, url.Values{"id": {"eq." + id}}),
		token:   userToken(ctx),
		headers: map[string]string{"Prefer": preferRepresentation},
	}, &deleted)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if len(deleted) == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

var (
	_ domain.OrderStore         = (*OrderStore)(nil)
	_ domain.OrderHeaderDeleter = (*OrderStore)(nil)
	_ domain.CatalogRepository  = (*CatalogRepository)(nil)
)
