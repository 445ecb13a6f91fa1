// Package checkout превращает корзину сессии в сохранённый заказ.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Режимы работы сборщика заказов.
const (
	ModeStore = "store"
	ModeLocal = "local"
)

const aggregateTypeOrder = "order"

// Cart: то, что сборщику нужно от корзины.
type Cart interface {
	Lines() []domain.CartLine
	Subtotal() domain.Money
	Clear()
}

// Assembler оформляет заказ в две фазы: шапка, затем позиции.
// Без хранилища работает локально: id и время генерируются на месте.
type Assembler struct {
	store      domain.OrderStore
	outbox     domain.OutboxRepository
	logger     *log.Entry
	metrics    *metrics.CheckoutMetrics
	now        func() time.Time
	compensate bool

	idMu   sync.Mutex
	lastID int64
}

// Option настраивает Assembler.
type Option func(*Assembler)

// WithOutbox включает запись событий заказа в outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(a *Assembler) { a.outbox = outbox }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics задаёт метрики оформления.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// WithCompensation включает удаление осиротевшей шапки при сбое второй фазы.
// Работает только с хранилищем, реализующим domain.OrderHeaderDeleter.
// По умолчанию выключено: шапка остаётся, ошибка несёт её id.
func WithCompensation(enabled bool) Option {
	return func(a *Assembler) { a.compensate = enabled }
}

// NewAssembler создаёт сборщик. store == nil означает локальный режим.
func NewAssembler(store domain.OrderStore, opts ...Option) *Assembler {
	a := &Assembler{
		store:  store,
		logger: log.New().WithField("component", "checkout"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Mode возвращает режим работы: store или local.
func (a *Assembler) Mode() string {
	if a.store == nil {
		return ModeLocal
	}
	return ModeStore
}

// PlaceOrder оформляет заказ из корзины. Корзина очищается только при полном успехе.
//
// Ошибки: domain.ErrLoginRequired, domain.ErrCartEmpty, *domain.OrderCreationError
// (ничего не записано, можно повторить), *domain.OrderItemsError (шапка записана,
// позиций нет).
func (a *Assembler) PlaceOrder(ctx context.Context, cart Cart, identity *domain.Identity) (domain.Order, error) {
	if identity == nil {
		a.recordOutcome(metrics.OutcomeRejected)
		return domain.Order{}, domain.ErrLoginRequired
	}

	lines := cart.Lines()
	if len(lines) == 0 {
		a.recordOutcome(metrics.OutcomeRejected)
		return domain.Order{}, domain.ErrCartEmpty
	}
	total := cart.Subtotal()

	if a.metrics != nil {
		a.metrics.RecordInFlightStarted()
		defer a.metrics.RecordInFlightFinished()
	}

	var (
		receipt domain.HeaderReceipt
		err     error
	)
	if a.store == nil {
		receipt = a.localReceipt()
	} else {
		receipt, err = a.persist(ctx, identity, lines, total)
		if err != nil {
			return domain.Order{}, err
		}
	}

	order := domain.Order{
		ID:       receipt.ID,
		Identity: *identity,
		Lines:    lines,
		Total:    total,
		PlacedAt: receipt.CreatedAt,
	}
	cart.Clear()

	if a.metrics != nil {
		a.metrics.RecordPlaced(int64(total))
	}
	a.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  identity.ID,
		"total":    total.String(),
		"mode":     a.Mode(),
	}).Info("order placed")

	a.emitEvent(kafka.NewOrderPlaced(&order))
	return order, nil
}

func (a *Assembler) persist(ctx context.Context, identity *domain.Identity, lines []domain.CartLine, total domain.Money) (domain.HeaderReceipt, error) {
	start := time.Now()
	receipt, err := a.store.InsertHeader(ctx, domain.OrderHeader{UserID: identity.ID, Total: total})
	a.recordPhase(domain.CheckoutPhaseHeader, start)
	if err != nil {
		a.logger.WithError(err).WithField("user_id", identity.ID).Warn("order header insert failed")
		a.recordOutcome(metrics.OutcomeHeaderFailed)
		return domain.HeaderReceipt{}, &domain.OrderCreationError{Err: err}
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = a.now().UTC()
	}

	start = time.Now()
	err = a.store.InsertLineItems(ctx, domain.LineItems(receipt.ID, lines))
	a.recordPhase(domain.CheckoutPhaseItems, start)
	if err != nil {
		return domain.HeaderReceipt{}, a.handleItemsFailure(ctx, receipt.ID, identity, err)
	}
	return receipt, nil
}

func (a *Assembler) handleItemsFailure(ctx context.Context, orderID string, identity *domain.Identity, itemsErr error) error {
	a.recordOutcome(metrics.OutcomeItemsFailed)
	logger := a.logger.WithError(itemsErr).WithField("order_id", orderID)

	compensated := false
	if a.compensate {
		if deleter, ok := a.store.(domain.OrderHeaderDeleter); ok {
			start := time.Now()
			delErr := deleter.DeleteHeader(ctx, orderID)
			a.recordPhase(domain.CheckoutPhaseCompensate, start)
			compensated = delErr == nil
			if a.metrics != nil {
				a.metrics.RecordCompensation(compensated)
			}
			if delErr != nil {
				logger = logger.WithField("compensate_error", delErr.Error())
			}
		} else {
			logger.Warn("compensation enabled but order store cannot delete headers")
		}
	}

	if !compensated {
		if a.metrics != nil {
			a.metrics.RecordOrphanHeader()
		}
		logger.Error("order items insert failed, header left without items")
	} else {
		logger.Warn("order items insert failed, header deleted")
	}

	a.emitEvent(kafka.NewOrderItemsFailed(orderID, identity.ID, itemsErr, compensated, a.now()))
	return &domain.OrderItemsError{OrderID: orderID, Compensated: compensated, Err: itemsErr}
}

// localReceipt выдаёт монотонный id из миллисекунд: ORD-<unix ms>.
func (a *Assembler) localReceipt() domain.HeaderReceipt {
	now := a.now().UTC()

	a.idMu.Lock()
	id := now.UnixMilli()
	if id <= a.lastID {
		id = a.lastID + 1
	}
	a.lastID = id
	a.idMu.Unlock()

	return domain.HeaderReceipt{ID: fmt.Sprintf("ORD-%d", id), CreatedAt: now}
}

// emitEvent сохраняет событие заказа в outbox. Сбой записи не влияет на результат оформления.
func (a *Assembler) emitEvent(event kafka.OrderEvent) {
	if a.outbox == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		a.logger.WithError(err).WithField("order_id", event.OrderID).Error("marshal order event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: aggregateTypeOrder,
		AggregateID:   event.OrderID,
		EventType:     string(event.EventType),
		Payload:       payload,
	}
	if _, err := a.outbox.Enqueue(msg); err != nil {
		a.logger.WithError(err).WithField("order_id", event.OrderID).Error("enqueue order event failed")
		return
	}
	if a.metrics != nil {
		a.metrics.RecordOutboxEvent()
	}
}

func (a *Assembler) recordOutcome(outcome string) {
	if a.metrics != nil {
		a.metrics.RecordOutcome(outcome)
	}
}

func (a *Assembler) recordPhase(phase domain.CheckoutPhase, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordPhaseDuration(string(phase), time.Since(start))
	}
}
