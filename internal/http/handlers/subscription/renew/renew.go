// Package renew реализует HTTP-обработчик продления подписки: списание
// стоимости тарифа с баланса, назначение тарифа на 30 дней и сброс
// лимитов действий.
package renew

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

// Handler управляет HTTP-запросами на продление подписки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики продления подписки.
type Service interface {
	Renew(ctx context.Context, userID int64, tier models.Tier) (*models.Account, error)
}

// Request тело запроса на продление подписки.
type Request struct {
	Tier string `json:"tier" validate:"required,oneof=basic pro business"`
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
// @Summary Продлить подписку
// @Description Списывает стоимость тарифа с баланса, назначает тариф на 30 дней и сбрасывает лимиты.
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param userID path int true "Идентификатор пользователя"
// @Param request body Request true "Тариф подписки"
// @Success 200 {object} map[string]any "Обновлённое состояние аккаунта"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 402 {object} response.ErrorResponse "Недостаточно средств"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /accounts/{userID}/subscription/renew [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.renew"
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

	tier, err := models.ParseTier(req.Tier)
	if err != nil {
		log.Error("unknown tier", slog.String("tier", req.Tier))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown subscription tier"))
		return
	}

	account, err := h.service.Renew(r.Context(), userID, tier)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrInsufficientBalance):
		log.Info("renew denied: insufficient balance",
			slog.Int64("user_id", userID), slog.String("tier", req.Tier))
		w.WriteHeader(http.StatusPaymentRequired)
		render.JSON(w, r, response.Error("insufficient balance"))
		return
	default:
		log.Error("failed to renew subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not renew subscription"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(account))
}
