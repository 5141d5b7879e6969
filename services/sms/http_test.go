package smssvc

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/core"
)

func newTestGateway(t *testing.T, h http.HandlerFunc) core.SMSGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conf := core.NewTestConfig()
	conf.SMS.BaseURL = srv.URL + "/"
	conf.SMS.ApiKey = "secret"
	conf.SMS.SenderID = "ADMFLW"
	return NewHTTPGateway(conf)
}

func TestHTTPGateway_Send(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, sendPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"sender":"ADMFLW","to":"919848022338","message":"hello","templateId":"1107"}`, string(body))
		_, _ = w.Write([]byte(`{"messageId":"m-1","status":"SUBMITTED"}`))
	})

	receipt, err := gw.Send(context.Background(), core.SMSMessage{To: "9848022338", Content: "hello", DLTTemplateID: "1107"})
	require.NoError(t, err)
	assert.Equal(t, core.SMSReceipt{ProviderMessageID: "m-1", Status: core.DeliveryPending}, receipt)
}

func TestHTTPGateway_SendRejected(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"template not registered"}`))
	})

	_, err := gw.Send(context.Background(), core.SMSMessage{To: "9848022338", Content: "hello", DLTTemplateID: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template not registered")
}

func TestHTTPGateway_DeliveryStatus(t *testing.T) {
	tests := []struct {
		provider string
		want     core.DeliveryStatus
	}{
		{"DELIVERED", core.DeliverySuccess},
		{"undelivered", core.DeliveryFailed},
		{"queued", core.DeliveryPending},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, statusPath, r.URL.Path)
				assert.Equal(t, "m-1", r.URL.Query().Get("messageId"))
				_, _ = w.Write([]byte(`{"messageId":"m-1","status":"` + tt.provider + `"}`))
			})
			got, err := gw.DeliveryStatus(context.Background(), "m-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsoleGateway(t *testing.T) {
	gw := NewConsoleGateway(nil)
	ctx := context.Background()

	receipt, err := gw.Send(ctx, core.SMSMessage{To: "9848022338", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, core.DeliveryPending, receipt.Status)
	assert.Len(t, gw.Sent(), 1)

	status, _ := gw.DeliveryStatus(ctx, receipt.ProviderMessageID)
	assert.Equal(t, core.DeliverySuccess, status)
	status, _ = gw.DeliveryStatus(ctx, "unknown")
	assert.Equal(t, core.DeliveryFailed, status)
}
