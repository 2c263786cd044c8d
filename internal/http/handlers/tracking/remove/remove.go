// Package remove реализует HTTP-обработчик удаления товара из списка
// отслеживания. Освобождённый слот сразу доступен для нового товара.
package remove

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/marketplace-analytics/internal/http/response"
	"github.com/magabrotheeeer/marketplace-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-analytics/internal/models"
)

// Handler управляет HTTP-запросами на удаление товара из отслеживания.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики удаления товара.
type Service interface {
	Untrack(ctx context.Context, userID int64, itemID string) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Убрать товар из отслеживания
// @Description Удаляет товар из списка отслеживания и освобождает слот тарифа.
// @Tags Tracking
// @Produce json
// @Param userID path int true "Идентификатор пользователя"
// @Param itemID path string true "Артикул товара"
// @Success 200 {object} map[string]any "Товар удалён"
// @Failure 400 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 404 {object} response.ErrorResponse "Товар не отслеживается"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /accounts/{userID}/tracking/{itemID} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.tracking.remove"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		log.Error("invalid user id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user id"))
		return
	}
	itemID := chi.URLParam(r, "itemID")
	if itemID == "" {
		log.Error("missing item id")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing item id"))
		return
	}

	err = h.service.Untrack(r.Context(), userID, itemID)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotTracked):
		log.Info("untrack denied: item not tracked",
			slog.Int64("user_id", userID), slog.String("item_id", itemID))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("item is not tracked"))
		return
	default:
		log.Error("failed to untrack item", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not untrack item"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"item_id": itemID,
	}))
}
