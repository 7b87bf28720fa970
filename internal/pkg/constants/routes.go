package constants

// Static route constants
const (
	PaymentRoute             = "/payment"
	CreatePaymentIntentRoute = "/create-payment-intent"
	TransactionsRoute        = "/transactions"
	WebhookRoute             = "/webhook"
)
