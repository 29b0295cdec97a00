package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"combopos/backend/internal/domain"
)

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleListPromotions(w http.ResponseWriter, r *http.Request) {
	activeOnly := strings.EqualFold(r.URL.Query().Get("active"), "true")
	rules, err := a.service.ListPromotions(r.Context(), activeOnly)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promotions": rules})
}

func (a *API) handleCreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req domain.PromotionCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rule, err := a.service.CreatePromotion(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"promotion": rule})
}

func (a *API) handleTogglePromotion(w http.ResponseWriter, r *http.Request) {
	var req domain.PromotionToggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rule, err := a.service.SetPromotionActive(r.Context(), chi.URLParam(r, "promotionID"), req.Active)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promotion": rule})
}

func (a *API) handleOpenOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderOpenRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	order, err := a.service.OpenOrder(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.OrderResponse{Order: order})
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OrderResponse{Order: order})
}

func (a *API) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req domain.AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := a.service.AddItem(r.Context(), chi.URLParam(r, "orderID"), req)
	a.writeOrder(w, r, order, err)
}

func (a *API) handleSetItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req domain.SetQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := a.service.SetItemQuantity(r.Context(), chi.URLParam(r, "orderID"), chi.URLParam(r, "lineID"), req.Quantity)
	a.writeOrder(w, r, order, err)
}

func (a *API) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.RemoveItem(r.Context(), chi.URLParam(r, "orderID"), chi.URLParam(r, "lineID"))
	a.writeOrder(w, r, order, err)
}

func (a *API) handleClearOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.ClearOrder(r.Context(), chi.URLParam(r, "orderID"))
	a.writeOrder(w, r, order, err)
}

func (a *API) handleFinalizeOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.FinalizeOrder(r.Context(), chi.URLParam(r, "orderID"))
	a.writeOrder(w, r, order, err)
}

func (a *API) handleAbandonOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.AbandonOrder(r.Context(), chi.URLParam(r, "orderID"))
	a.writeOrder(w, r, order, err)
}

func (a *API) handleComboSuggestions(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.DetectComboSuggestions(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDismissSuggestion(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.DismissComboSuggestion(r.Context(), chi.URLParam(r, "orderID"), chi.URLParam(r, "comboID"))
	a.writeOrder(w, r, order, err)
}

func (a *API) handleApplyCombo(w http.ResponseWriter, r *http.Request) {
	var req domain.ApplyComboRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.ComboID) == "" {
		writeError(w, http.StatusBadRequest, errors.New("combo_id is required"))
		return
	}

	resp, err := a.service.ApplyCombo(r.Context(), chi.URLParam(r, "orderID"), req.ComboID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleComboItemOptions(w http.ResponseWriter, r *http.Request) {
	index, ok := constituentIndex(w, r)
	if !ok {
		return
	}

	options, err := a.service.CustomizeComboItem(r.Context(), chi.URLParam(r, "orderID"), chi.URLParam(r, "lineID"), index)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (a *API) handleCustomizeComboItem(w http.ResponseWriter, r *http.Request) {
	index, ok := constituentIndex(w, r)
	if !ok {
		return
	}
	var req domain.CustomizeComboItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := a.service.UpdateComboItemCustomization(r.Context(), chi.URLParam(r, "orderID"), chi.URLParam(r, "lineID"), index, req.ProductID)
	a.writeOrder(w, r, order, err)
}

func (a *API) handleRevertCombo(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.RevertCombo(r.Context(), chi.URLParam(r, "orderID"), chi.URLParam(r, "lineID"))
	a.writeOrder(w, r, order, err)
}

func (a *API) handleToggleCombo(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.ToggleComboExpanded(r.Context(), chi.URLParam(r, "orderID"), chi.URLParam(r, "lineID"))
	a.writeOrder(w, r, order, err)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parsePositiveLimit(query.Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), query.Get("store_id"), query.Get("date"), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (a *API) writeOrder(w http.ResponseWriter, r *http.Request, order domain.Order, err error) {
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OrderResponse{Order: order})
}

func constituentIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, errors.New("index must be a non-negative integer"))
		return 0, false
	}
	return index, true
}
