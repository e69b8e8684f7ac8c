package handler

import (
    "context"
    "net/http"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/tickettheatre/core-service/internal/service"
    "github.com/tickettheatre/core-service/internal/storage"
)

func newWebhookFixture(t *testing.T) (*WebhookHandler, *ReservationHandler, *storage.MemoryStore) {
    t.Helper()
    rh, store := newHandlerFixture(t, 10)
    rec := service.NewReconciler(rh.Svc, nil)
    return NewWebhookHandler(rec), rh, store
}

// holdWithPayment drives the user-facing endpoints to produce a
// reservation with a payment reference the webhook can match.
func holdWithPayment(t *testing.T, rh *ReservationHandler) (id string, paymentRef string) {
    t.Helper()
    c, rec := request(http.MethodPost, "/v1/seances/1/reservations",
        `{"quantity":1}`, 7, map[string]string{"id": "1"})
    require.NoError(t, rh.CreateHold(c))
    require.Equal(t, http.StatusCreated, rec.Code)
    data := decode(t, rec)["data"].(map[string]interface{})
    id = fmtID(data["id"].(float64))

    c, rec = request(http.MethodPost, "/v1/reservations/"+id+"/payment",
        `{"customer_email":"user@example.com"}`, 7, map[string]string{"id": id})
    require.NoError(t, rh.InitiatePayment(c))
    require.Equal(t, http.StatusOK, rec.Code)
    payData := decode(t, rec)["data"].(map[string]interface{})
    return id, payData["payment_ref"].(string)
}

func TestWebhookSucceededConfirmsReservation(t *testing.T) {
    wh, rh, store := newWebhookFixture(t)
    _, ref := holdWithPayment(t, rh)

    c, rec := request(http.MethodPost, "/v1/webhooks/payment",
        `{"event":"payment.succeeded","event_id":"evt_1","payment":{"id":"`+ref+`","amount":1500}}`,
        0, nil)
    require.NoError(t, wh.HandlePaymentWebhook(c))
    require.Equal(t, http.StatusOK, rec.Code)
    body := decode(t, rec)
    assert.Equal(t, true, body["success"])
    assert.Equal(t, "applied", body["data"].(map[string]interface{})["outcome"])

    row, err := store.GetReservationByPaymentRef(context.Background(), ref)
    require.NoError(t, err)
    assert.Equal(t, "confirmed", row.Status)
}

func TestWebhookRedeliveryIsAcknowledged(t *testing.T) {
    wh, rh, _ := newWebhookFixture(t)
    _, ref := holdWithPayment(t, rh)
    payload := `{"event":"payment.succeeded","event_id":"evt_1","payment":{"id":"` + ref + `"}}`

    c, rec := request(http.MethodPost, "/v1/webhooks/payment", payload, 0, nil)
    require.NoError(t, wh.HandlePaymentWebhook(c))
    require.Equal(t, http.StatusOK, rec.Code)

    // The gateway retries; the answer stays 200 so it stops.
    c, rec = request(http.MethodPost, "/v1/webhooks/payment", payload, 0, nil)
    require.NoError(t, wh.HandlePaymentWebhook(c))
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "stale", decode(t, rec)["data"].(map[string]interface{})["outcome"])
}

func TestWebhookFailedCancelsHold(t *testing.T) {
    wh, rh, store := newWebhookFixture(t)
    _, ref := holdWithPayment(t, rh)

    c, rec := request(http.MethodPost, "/v1/webhooks/payment",
        `{"event":"payment.failed","event_id":"evt_2","payment":{"id":"`+ref+`"}}`, 0, nil)
    require.NoError(t, wh.HandlePaymentWebhook(c))
    require.Equal(t, http.StatusOK, rec.Code)

    row, err := store.GetReservationByPaymentRef(context.Background(), ref)
    require.NoError(t, err)
    assert.Equal(t, "cancelled", row.Status)
    assert.Equal(t, "failed", row.PaymentStatus)
}

func TestWebhookUnknownEventIsIgnored(t *testing.T) {
    wh, _, _ := newWebhookFixture(t)

    c, rec := request(http.MethodPost, "/v1/webhooks/payment",
        `{"event":"payment.requires_action","event_id":"evt_3","payment":{"id":"pi_x"}}`, 0, nil)
    require.NoError(t, wh.HandlePaymentWebhook(c))
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "ignored", decode(t, rec)["data"].(map[string]interface{})["outcome"])
}

func TestWebhookUnmatchedReferenceIs404(t *testing.T) {
    wh, _, _ := newWebhookFixture(t)

    c, rec := request(http.MethodPost, "/v1/webhooks/payment",
        `{"event":"payment.succeeded","event_id":"evt_4","payment":{"id":"pi_unknown"}}`, 0, nil)
    require.NoError(t, wh.HandlePaymentWebhook(c))
    assert.Equal(t, http.StatusNotFound, rec.Code)
    assert.Equal(t, KindNotFound, errorKind(t, decode(t, rec)))
}

func TestWebhookRejectsMalformedPayloads(t *testing.T) {
    wh, _, _ := newWebhookFixture(t)

    c, rec := request(http.MethodPost, "/v1/webhooks/payment", `{"event":""}`, 0, nil)
    require.NoError(t, wh.HandlePaymentWebhook(c))
    assert.Equal(t, http.StatusBadRequest, rec.Code)

    c, rec = request(http.MethodPost, "/v1/webhooks/payment", `not json`, 0, nil)
    require.NoError(t, wh.HandlePaymentWebhook(c))
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}
