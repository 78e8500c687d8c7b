package billing

// Config holds the billing functions' settings.
type Config struct {
	PriceID    string `env:"BILLING_PRICE_ID,required"`
	Tier       string `env:"BILLING_TIER" envDefault:"Premium"`
	SuccessURL string `env:"BILLING_SUCCESS_URL"`
	// Locale formats the price shown on the plans page.
	Locale string `env:"BILLING_PRICE_LOCALE" envDefault:"pt-BR"`
}

// PaddleConfig holds the Paddle API credentials.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}
