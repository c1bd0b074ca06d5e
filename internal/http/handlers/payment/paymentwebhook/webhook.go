// Package paymentwebhook реализует HTTP-обработчик колбэка платёжного шлюза.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/studyhub/session-guard/internal/lib/sl"
	paymentservice "github.com/studyhub/session-guard/internal/services/payment"
)

// Service описывает интерфейс обработки события шлюза.
type Service interface {
	HandleCallback(ctx context.Context, event paymentservice.CallbackEvent) error
}

// Handler обрабатывает колбэки платёжного шлюза.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload — тело колбэка шлюза.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		ID       string            `json:"id"`     // ID заказа
		Status   string            `json:"status"` // статус платежа
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
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
	if signature == "" || !h.verifySignature(body, signature) {
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

	const (
		PaymentSucceeded = "payment.succeeded"
		PaymentCanceled  = "payment.canceled"
	)

	switch strings.ToLower(payload.Event) {
	case PaymentSucceeded, PaymentCanceled:
		event := paymentservice.CallbackEvent{
			OrderID: payload.Object.ID,
			Status:  payload.Object.Status,
			UserUID: payload.Object.Metadata["user_uid"],
		}
		if err := h.service.HandleCallback(r.Context(), event); err != nil {
			log.Error("failed to process webhook event", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	default:
		log.Info("ignoring webhook event", slog.String("event", payload.Event))
	}

	w.WriteHeader(http.StatusOK)
}
