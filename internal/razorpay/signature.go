package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SignatureHeader — заголовок, в котором Razorpay передаёт подпись вебхука.
const SignatureHeader = "X-Razorpay-Signature"

// EventPaymentCaptured — тип события вебхука об успешном списании средств.
const EventPaymentCaptured = "payment.captured"

// PaymentSignature вычисляет подпись подтверждения оплаты: HMAC-SHA256(secret, orderID + "|" + paymentID) в hex.
func PaymentSignature(secret, orderID, paymentID string) string {
	return sign(secret, []byte(orderID+"|"+paymentID))
}

// WebhookSignature вычисляет подпись тела вебхука: HMAC-SHA256(secret, body) в hex.
func WebhookSignature(secret string, body []byte) string {
	return sign(secret, body)
}

// VerifyPaymentSignature проверяет подпись, которую клиент получил от checkout после оплаты.
func VerifyPaymentSignature(secret, orderID, paymentID, signature string) bool {
	return verify(secret, []byte(orderID+"|"+paymentID), signature)
}

// VerifyWebhookSignature проверяет подпись необработанного тела вебхука.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	return verify(secret, body, signature)
}

func sign(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret string, msg []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := sign(secret, msg)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookEvent описывает конверт события вебхука Razorpay.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// PaymentEntity описывает платёж внутри события вебхука.
type PaymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
}

// ParseWebhookEvent разбирает тело вебхука. Вызывать только после проверки подписи.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return &ev, nil
}
