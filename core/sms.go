package core

import "context"

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

type SMSMessage struct {
	To            string // 10 digit mobile number
	Content       string
	DLTTemplateID string
}

type SMSReceipt struct {
	ProviderMessageID string
	Status            DeliveryStatus
}

// SMSGateway is any provider able to deliver DLT registered SMS.
type SMSGateway interface {
	Send(ctx context.Context, msg SMSMessage) (SMSReceipt, error)
	// DeliveryStatus asks the provider for the latest status of a sent message.
	DeliveryStatus(ctx context.Context, providerMessageID string) (DeliveryStatus, error)
}
