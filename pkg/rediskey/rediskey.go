package rediskey

import "fmt"

// Payment event keys (global convention across services)
const (
	PaymentEventPrefix = "payment:event"
	AccountPrefix      = "account"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildPaymentEventKey returns "payment:event:{eventID}"
func BuildPaymentEventKey(eventID string) string {
	return NamespaceKey(PaymentEventPrefix, eventID)
}

// BuildAccountKey returns "account:{userID}"
func BuildAccountKey(userID int64) string {
	return NamespaceKey(AccountPrefix, fmt.Sprintf("%d", userID))
}
