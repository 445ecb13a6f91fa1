package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorMappings проверяются по порядку; пустой message означает текст самой ошибки.
var errorMappings = []errorMapping{
	{domain.ErrOrderCreation, http.StatusServiceUnavailable, "order_creation_failed", "We could not create your order, please retry."},
	{domain.ErrOrderItems, http.StatusBadGateway, "order_items_failed", "Your order was created but its items were not saved, please contact support."},
	{domain.ErrLoginRequired, http.StatusUnauthorized, "login_required", "Please sign in to continue."},
	{domain.ErrAuthentication, http.StatusUnauthorized, "authentication_failed", ""},
	{domain.ErrSessionNotFound, http.StatusNotFound, "session_not_found", "session not found or expired"},
	{domain.ErrOperationInFlight, http.StatusConflict, "operation_in_flight", "request is already being processed"},
	{domain.ErrAccessDenied, http.StatusForbidden, "access_denied", "access denied"},
	{domain.ErrAccessCodeFormat, http.StatusBadRequest, "invalid_access_code", ""},
	{domain.ErrCartEmpty, http.StatusBadRequest, "cart_empty", "Your cart is empty."},
	{domain.ErrQuantityInvalid, http.StatusBadRequest, "invalid_quantity", ""},
	{domain.ErrOutOfStock, http.StatusConflict, "out_of_stock", ""},
	{domain.ErrProductNotFound, http.StatusNotFound, "product_not_found", ""},
	{domain.ErrProductExists, http.StatusConflict, "product_exists", ""},
	{domain.ErrCatalogReadOnly, http.StatusNotImplemented, "catalog_read_only", ""},
	{domain.ErrProductIDRequired, http.StatusBadRequest, "invalid_product", ""},
	{domain.ErrProductNameRequired, http.StatusBadRequest, "invalid_product", ""},
	{domain.ErrProductCategoryInvalid, http.StatusBadRequest, "invalid_product", ""},
	{domain.ErrProductBrandInvalid, http.StatusBadRequest, "invalid_product", ""},
	{domain.ErrProductPriceNegative, http.StatusBadRequest, "invalid_product", ""},
	{domain.ErrProductImageRequired, http.StatusBadRequest, "invalid_product", ""},
}

// writeError переводит ошибку домена в HTTP-ответ.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		message := m.message
		if message == "" {
			message = err.Error()
		}
		respondError(w, m.status, m.code, message, errorDetails(err))
		return
	}

	h.logger.WithError(err).WithField("path", r.URL.Path).Error("unhandled error")
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", "")
}

// errorDetails раскрывает id заказа, шапка которого осталась без позиций.
func errorDetails(err error) string {
	var itemsErr *domain.OrderItemsError
	if errors.As(err, &itemsErr) {
		return "order_id=" + itemsErr.OrderID
	}
	return ""
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message, details string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}
