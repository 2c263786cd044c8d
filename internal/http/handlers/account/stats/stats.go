// Package stats реализует HTTP-обработчик чтения состояния аккаунта:
// баланс, подписка, лимиты действий и отслеживаемые товары.
package stats

import (
	"context"
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

// Handler управляет HTTP-запросами на чтение состояния аккаунта.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики чтения состояния аккаунта.
type Service interface {
	Stats(ctx context.Context, userID int64) (*models.Account, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Состояние аккаунта
// @Description Возвращает баланс, подписку, лимиты и список отслеживаемых товаров.
// @Tags Accounts
// @Produce json
// @Param userID path int true "Идентификатор пользователя"
// @Success 200 {object} map[string]any "Состояние аккаунта"
// @Failure 400 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /accounts/{userID}/stats [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.stats"
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

	account, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		log.Error("failed to read account stats", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read account stats"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(account))
}
