package domain

import (
	"context"
	"time"
)

// AuthProvider — сессия у внешнего провайдера аутентификации.
// Один экземпляр обслуживает одну пользовательскую сессию.
type AuthProvider interface {
	// CurrentSession возвращает текущего пользователя или nil.
	CurrentSession(ctx context.Context) (*Identity, error)
	SignIn(ctx context.Context, creds Credentials) (Identity, error)
	// SignUp регистрирует пользователя; вход не выполняется.
	SignUp(ctx context.Context, creds Credentials, profile Profile) error
	SignOut(ctx context.Context) error
	// Subscribe отдаёт канал событий сессии и функцию отписки.
	Subscribe() (<-chan SessionEvent, func())
}

// AuthConnector открывает новую сессию у провайдера.
type AuthConnector interface {
	Connect() AuthProvider
}

// OrderStore — хранилище двух связанных коллекций: шапок и позиций заказа.
type OrderStore interface {
	InsertHeader(ctx context.Context, header OrderHeader) (HeaderReceipt, error)
	InsertLineItems(ctx context.Context, items []OrderLineItem) error
}

// OrderHeaderDeleter поддерживается хранилищами, в которых можно
// удалить осиротевшую шапку (опциональная компенсация).
type OrderHeaderDeleter interface {
	DeleteHeader(ctx context.Context, orderID string) error
}

// CatalogSource отдаёт список товаров.
type CatalogSource interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

// CatalogRepository — источник каталога с правкой из админки.
type CatalogRepository interface {
	CatalogSource
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// CheckoutPhase — фаза оформления для метрик и логов.
type CheckoutPhase string

const (
	CheckoutPhaseHeader     CheckoutPhase = "header"
	CheckoutPhaseItems      CheckoutPhase = "items"
	CheckoutPhaseCompensate CheckoutPhase = "compensate"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
