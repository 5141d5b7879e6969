package smssvc

import (
	"context"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/admitflow/core"
)

const (
	sendPath   = "/v1/sms"
	statusPath = "/v1/sms/status"
)

type (
	httpGateway struct {
		baseURL  string
		apiKey   string
		senderID string
		entityID string
		client   *rest.Client
	}

	sendRequest struct {
		Sender     string `json:"sender"`
		To         string `json:"to"`
		Message    string `json:"message"`
		TemplateID string `json:"templateId"`
		EntityID   string `json:"entityId,omitempty"`
	}

	sendResponse struct {
		MessageID string `json:"messageId"`
		Status    string `json:"status"`
		Error     string `json:"error"`
	}

	statusResponse struct {
		MessageID string `json:"messageId"`
		Status    string `json:"status"`
	}
)

var _ core.SMSGateway = (*httpGateway)(nil)

// NewHTTPGateway talks to a DLT compliant SMS provider over its JSON API.
func NewHTTPGateway(conf *core.Config) core.SMSGateway {
	return &httpGateway{
		baseURL:  strings.TrimRight(conf.SMS.BaseURL, "/"),
		apiKey:   conf.SMS.ApiKey,
		senderID: conf.SMS.SenderID,
		entityID: conf.SMS.EntityID,
		client:   &rest.Client{HTTPClient: http.DefaultClient},
	}
}

func (gw *httpGateway) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + gw.apiKey,
		"Content-Type":  "application/json",
		"Accept":        "application/json",
	}
}

// normalizeStatus maps provider statuses onto ours; unknown statuses stay pending.
func normalizeStatus(s string) core.DeliveryStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "delivered", "success", "sent":
		return core.DeliverySuccess
	case "failed", "undelivered", "rejected", "expired":
		return core.DeliveryFailed
	default:
		return core.DeliveryPending
	}
}

func (gw *httpGateway) Send(ctx context.Context, msg core.SMSMessage) (core.SMSReceipt, error) {
	body, err := sonic.Marshal(sendRequest{
		Sender:     gw.senderID,
		To:         "91" + msg.To,
		Message:    msg.Content,
		TemplateID: msg.DLTTemplateID,
		EntityID:   gw.entityID,
	})
	if err != nil {
		return core.SMSReceipt{}, errors.Wrap(err, "encoding sms request")
	}

	res, err := gw.client.SendWithContext(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: gw.baseURL + sendPath,
		Headers: gw.headers(),
		Body:    body,
	})
	if err != nil {
		return core.SMSReceipt{}, errors.Wrap(err, "calling sms provider")
	}

	var sr sendResponse
	if err = sonic.UnmarshalString(res.Body, &sr); err != nil && res.StatusCode < http.StatusBadRequest {
		return core.SMSReceipt{}, errors.Wrap(err, "decoding sms response")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return core.SMSReceipt{}, errors.Errorf("sms provider: status %d: %s", res.StatusCode, core.FirstNonEmpty(sr.Error, res.Body))
	}
	if sr.MessageID == "" {
		return core.SMSReceipt{}, errors.New("sms provider: missing message id")
	}
	return core.SMSReceipt{ProviderMessageID: sr.MessageID, Status: normalizeStatus(sr.Status)}, nil
}

func (gw *httpGateway) DeliveryStatus(ctx context.Context, providerMessageID string) (core.DeliveryStatus, error) {
	res, err := gw.client.SendWithContext(ctx, rest.Request{
		Method:      rest.Get,
		BaseURL:     gw.baseURL + statusPath,
		Headers:     gw.headers(),
		QueryParams: map[string]string{"messageId": providerMessageID},
	})
	if err != nil {
		return "", errors.Wrap(err, "calling sms provider")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return "", errors.Errorf("sms provider: status %d: %s", res.StatusCode, res.Body)
	}

	var sr statusResponse
	if err = sonic.UnmarshalString(res.Body, &sr); err != nil {
		return "", errors.Wrap(err, "decoding sms status")
	}
	return normalizeStatus(sr.Status), nil
}
