// Package webhook реализует приём уведомлений платёжного провайдера
// о зачислении средств. Подпись тела проверяется по общему секрету,
// успешный платёж пополняет баланс пользователя.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/marketplace-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-analytics/internal/models"
)

// Service описывает интерфейс пополнения баланса.
type Service interface {
	CreditBalance(ctx context.Context, userID int64, amount int) (*models.Account, error)
}

type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload тело уведомления платёжного провайдера.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`     // Идентификатор платежа
		Status string `json:"status"` // Статус платежа
		Amount struct {
			Value    string `json:"value"`    // Сумма строкой, например "1000.00"
			Currency string `json:"currency"` // Валюта
		} `json:"amount"`
		Metadata map[string]string `json:"metadata"` // user_id и прочее
	} `json:"object"`
}

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(h.webhookSecret, body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if _, err := uuid.Parse(payload.Object.ID); err != nil {
		log.Error("invalid payment id", slog.String("payment_id", payload.Object.ID))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if strings.ToLower(payload.Event) != "payment.succeeded" {
		log.Info("ignored webhook event", slog.String("event", payload.Event))
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, amount, err := parsePayment(&payload)
	if err != nil {
		log.Error("invalid payment payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if _, err := h.service.CreditBalance(r.Context(), userID, amount); err != nil {
		log.Error("failed to credit balance", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	log.Info("webhook processed successfully",
		slog.String("payment_id", payload.Object.ID),
		slog.Int64("user_id", userID), slog.Int("amount", amount))
	w.WriteHeader(http.StatusOK)
}

// parsePayment извлекает пользователя и сумму в целых рублях.
// Копейки в сумме отбрасываются.
func parsePayment(payload *Payload) (int64, int, error) {
	userID, err := strconv.ParseInt(payload.Object.Metadata["user_id"], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse user_id: %w", err)
	}
	value := payload.Object.Amount.Value
	if i := strings.IndexByte(value, '.'); i >= 0 {
		value = value[:i]
	}
	amount, err := strconv.Atoi(value)
	if err != nil {
		return 0, 0, fmt.Errorf("parse amount: %w", err)
	}
	if amount <= 0 {
		return 0, 0, fmt.Errorf("non-positive amount %d", amount)
	}
	return userID, amount, nil
}
