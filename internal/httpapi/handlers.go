package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/router"
	"github.com/vladislavdragonenkov/storefront/internal/storefront"
)

// ScreenResponse — текущий экран сессии.
type ScreenResponse struct {
	View       domain.ViewKind  `json:"view"`
	ProductID  string           `json:"product_id,omitempty"`
	Product    *domain.Product  `json:"product,omitempty"`
	Order      *domain.Order    `json:"order,omitempty"`
	Loading    bool             `json:"loading,omitempty"`
	Identity   *domain.Identity `json:"identity,omitempty"`
	Privileged bool             `json:"privileged"`
	Warning    string           `json:"warning,omitempty"`
}

// SessionResponse возвращается при открытии сессии.
type SessionResponse struct {
	Token  string         `json:"token"`
	Screen ScreenResponse `json:"screen"`
}

type signUpRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	BrandName    string `json:"brand_name"`
	InstagramURL string `json:"instagram_url"`
	PhoneNumber  string `json:"phone_number"`
}

type accessCodeRequest struct {
	Code string `json:"code"`
}

type accessCodeResponse struct {
	Brand domain.Brand `json:"brand,omitempty"`
	Admin bool         `json:"admin"`
}

type navigateRequest struct {
	View      string `json:"view"`
	ProductID string `json:"product_id,omitempty"`
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func newScreenResponse(s *storefront.Session, screen router.Screen) ScreenResponse {
	resp := ScreenResponse{
		View:       screen.View.Kind(),
		Product:    screen.Product,
		Order:      screen.Order,
		Loading:    screen.Loading,
		Identity:   s.Identity(),
		Privileged: s.Privileged(),
	}
	if id, ok := screen.View.ProductID(); ok {
		resp.ProductID = id
	}
	return resp
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", "")
		return false
	}
	return true
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Open(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, SessionResponse{
		Token:  s.ID(),
		Screen: newScreenResponse(s, s.Screen()),
	})
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(sessionFrom(r).ID()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if !decodeJSON(w, r, &creds) {
		return
	}
	s := sessionFrom(r)
	screen, err := s.SignIn(r.Context(), creds)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newScreenResponse(s, screen))
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := sessionFrom(r).SignUp(r.Context(),
		domain.Credentials{Email: req.Email, Password: req.Password},
		domain.Profile{BrandName: req.BrandName, InstagramURL: req.InstagramURL, PhoneNumber: req.PhoneNumber},
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "confirmation_pending"})
}

// signOut всегда отвечает экраном login; сбой провайдера попадает в warning.
func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	screen, err := s.SignOut(r.Context())
	resp := newScreenResponse(s, screen)
	if err != nil {
		if !errors.Is(err, domain.ErrSignOut) {
			h.writeError(w, r, err)
			return
		}
		resp.Warning = "signed out locally, remote sign out failed"
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) accessCode(w http.ResponseWriter, r *http.Request) {
	var req accessCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	grant, err := sessionFrom(r).ChallengeAccessCode(req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accessCodeResponse{Brand: grant.Brand, Admin: grant.Admin})
}

func (h *Handler) screen(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	respondJSON(w, http.StatusOK, newScreenResponse(s, s.Screen()))
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	kind, err := domain.ParseViewKind(req.View)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_view", err.Error(), "")
		return
	}

	s := sessionFrom(r)
	if kind == domain.ViewProductDetail {
		screen, err := s.SelectProduct(req.ProductID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, newScreenResponse(s, screen))
		return
	}

	view, err := domain.NewView(kind, "")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_view", err.Error(), "")
		return
	}
	respondJSON(w, http.StatusOK, newScreenResponse(s, s.Navigate(view)))
}

func (h *Handler) startNewOrder(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	respondJSON(w, http.StatusOK, newScreenResponse(s, s.StartNewOrder()))
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	var filter catalog.Filter
	if raw := r.URL.Query().Get("category"); raw != "" {
		category := domain.Category(raw)
		if !category.Valid() {
			respondError(w, http.StatusBadRequest, "invalid_category", "unknown category "+raw, "")
			return
		}
		filter.Category = category
	}
	if raw := r.URL.Query().Get("brand"); raw != "" {
		brand, ok := domain.ParseBrand(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid_brand", "unknown brand "+raw, "")
			return
		}
		filter.Brand = brand
	}

	products, err := sessionFrom(r).Products(filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, sessionFrom(r).Cart())
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := sessionFrom(r).AddToCart(req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := sessionFrom(r).UpdateCartItem(chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, sessionFrom(r).RemoveCartItem(chi.URLParam(r, "productID")))
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	screen, err := s.PlaceOrder(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newScreenResponse(s, screen))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if !decodeJSON(w, r, &p) {
		return
	}
	created, err := sessionFrom(r).AddProduct(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "productID")
	updated, err := sessionFrom(r).UpdateProduct(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r).DeleteProduct(r.Context(), chi.URLParam(r, "productID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
