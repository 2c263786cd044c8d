// Package consume реализует HTTP-обработчик списания единицы лимита
// платного действия. Вызывается ботом перед выполнением каждого
// платного действия: успех означает, что действие разрешено и учтено.
package consume

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

// Handler управляет HTTP-запросами на списание лимита действия.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики списания лимита.
type Service interface {
	TryConsume(ctx context.Context, userID int64, action models.ActionType) error
}

// Request тело запроса на списание лимита.
type Request struct {
	Action string `json:"action" validate:"required"`
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
// @Summary Списать единицу лимита действия
// @Description Атомарно проверяет подписку и лимит, списывает одну единицу. Отказ окончателен.
// @Tags Accounts
// @Accept json
// @Produce json
// @Param userID path int true "Идентификатор пользователя"
// @Param request body Request true "Тип действия"
// @Success 200 {object} map[string]any "Действие разрешено"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 403 {object} response.ErrorResponse "Подписки нет или она истекла"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Лимит действия исчерпан"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /accounts/{userID}/consume [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.consume"
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

	action, err := models.ParseAction(req.Action)
	if err != nil {
		log.Error("unknown action", slog.String("action", req.Action))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown action type"))
		return
	}

	err = h.service.TryConsume(r.Context(), userID, action)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNoSubscription):
		log.Info("consume denied: no subscription", slog.Int64("user_id", userID))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("no active subscription"))
		return
	case errors.Is(err, models.ErrSubscriptionExpired):
		log.Info("consume denied: subscription expired", slog.Int64("user_id", userID))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("subscription expired"))
		return
	case errors.Is(err, models.ErrQuotaExceeded):
		log.Info("consume denied: quota exceeded",
			slog.Int64("user_id", userID), slog.String("action", req.Action))
		w.WriteHeader(http.StatusTooManyRequests)
		render.JSON(w, r, response.Error("action quota exceeded"))
		return
	default:
		log.Error("failed to consume action", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not consume action"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"action": req.Action,
	}))
}
