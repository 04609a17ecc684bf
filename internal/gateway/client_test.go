package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, SecretKey: "sk_test", Timeout: time.Second})
}

func TestChargeAuthorization(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		var got ChargeRequest
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/transaction/charge_authorization", r.URL.Path)
			assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Write([]byte(`{"status":true,"message":"Charge attempted","data":{"reference":"ref-1","status":"success"}}`))
		})

		res, err := client.ChargeAuthorization(ctx, ChargeRequest{
			AuthorizationCode: "AUTH_x", Email: "a@example.com", Amount: 100000, Reference: "ref-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "success", res.Status)
		assert.Equal(t, "ref-1", res.Reference)
		assert.Equal(t, int64(100000), got.Amount)
		assert.Equal(t, "AUTH_x", got.AuthorizationCode)
	})

	t.Run("declined charge is a rejection", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":true,"message":"Charge attempted","data":{"reference":"ref-2","status":"failed"}}`))
		})
		_, err := client.ChargeAuthorization(ctx, ChargeRequest{Reference: "ref-2"})
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("4xx is a rejection with message", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status":false,"message":"Invalid authorization code"}`))
		})
		_, err := client.ChargeAuthorization(ctx, ChargeRequest{Reference: "ref-3"})
		require.ErrorIs(t, err, ErrRejected)
		var rejected *RejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, "Invalid authorization code", rejected.Message)
	})

	t.Run("5xx leaves outcome unknown", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := client.ChargeAuthorization(ctx, ChargeRequest{Reference: "ref-4"})
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrRejected))
	})

	t.Run("deadline leaves outcome unknown", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})
		ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := client.ChargeAuthorization(ctx, ChargeRequest{Reference: "ref-5"})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, errors.Is(err, ErrRejected))
	})
}

func TestTransfer(t *testing.T) {
	var got TransferRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transfer", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":true,"message":"Transfer has been queued","data":{"transfer_code":"TRF_1","status":"pending"}}`))
	})

	res, err := client.Transfer(context.Background(), TransferRequest{
		Amount: 468750, Recipient: "RCP_1", Reason: "Ajo payout cycle 1", Reference: "payout-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "TRF_1", res.TransferCode)
	assert.Equal(t, "pending", res.Status)
	assert.Equal(t, "payout-1", res.Reference)
	assert.Equal(t, "balance", got.Source)
	assert.Equal(t, int64(468750), got.Amount)
}
