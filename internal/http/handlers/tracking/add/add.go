// Package add реализует HTTP-обработчик добавления товара в список
// отслеживания. Слот тарифа занимается атомарно вместе с записью
// начального снапшота товара.
package add

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/marketplace-analytics/internal/http/response"
	"github.com/magabrotheeeer/marketplace-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-analytics/internal/models"
)

// Handler управляет HTTP-запросами на добавление товара в отслеживание.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики добавления товара.
type Service interface {
	Track(ctx context.Context, userID int64, itemID, name string, snapshot models.Snapshot) error
}

// Request тело запроса на добавление товара.
type Request struct {
	ItemID   string               `json:"item_id" validate:"required,numeric"`
	Name     string               `json:"name" validate:"required"`
	Snapshot models.DummySnapshot `json:"snapshot" validate:"required"`
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Добавить товар в отслеживание
// @Description Занимает слот тарифа и сохраняет начальный снапшот товара.
// @Tags Tracking
// @Accept json
// @Produce json
// @Param userID path int true "Идентификатор пользователя"
// @Param request body Request true "Товар и его начальный снапшот"
// @Success 200 {object} map[string]any "Товар добавлен"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 403 {object} response.ErrorResponse "Подписки нет или она истекла"
// @Failure 409 {object} response.ErrorResponse "Товар уже отслеживается"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Все слоты тарифа заняты"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /accounts/{userID}/tracking [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.tracking.add"
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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	snapshot := models.Snapshot{
		Price:  req.Snapshot.Price,
		Stock:  req.Snapshot.Stock,
		Rating: req.Snapshot.Rating,
	}
	err = h.service.Track(r.Context(), userID, req.ItemID, req.Name, snapshot)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNoSubscription):
		log.Info("track denied: no subscription", slog.Int64("user_id", userID))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("no active subscription"))
		return
	case errors.Is(err, models.ErrSubscriptionExpired):
		log.Info("track denied: subscription expired", slog.Int64("user_id", userID))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("subscription expired"))
		return
	case errors.Is(err, models.ErrAlreadyTracked):
		log.Info("track denied: already tracked",
			slog.Int64("user_id", userID), slog.String("item_id", req.ItemID))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("item is already tracked"))
		return
	case errors.Is(err, models.ErrSlotLimitReached):
		log.Info("track denied: slot limit reached", slog.Int64("user_id", userID))
		w.WriteHeader(http.StatusTooManyRequests)
		render.JSON(w, r, response.Error("tracking slot limit reached"))
		return
	default:
		log.Error("failed to track item", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not track item"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"item_id": req.ItemID,
	}))
}
