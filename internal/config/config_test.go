package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StrategyCounter, c.OrderIDStrategy)
	assert.Equal(t, "BS-", c.OrderIDPrefix)
	assert.Equal(t, "paid", c.PaymentConfirmedStatus)
	assert.Equal(t, DispatchInline, c.ConfirmationDispatch)
	assert.False(t, c.InvoiceRegenerateOnEdit)
	assert.Equal(t, "Asia/Dubai", c.ExportLocation().String())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092, ,b:9092")
	t.Setenv("ORDER_ID_STRATEGY", StrategyOpaque)
	t.Setenv("PAYMENT_CONFIRMED_STATUS", "Payment confirmed")
	t.Setenv("INVOICE_REGENERATE_ON_EDIT", "true")
	t.Setenv("EMAIL_MODE", "attachment")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.KafkaBrokers)
	assert.Equal(t, StrategyOpaque, c.OrderIDStrategy)
	assert.Equal(t, "Payment confirmed", c.PaymentConfirmedStatus)
	assert.True(t, c.InvoiceRegenerateOnEdit)
	assert.Equal(t, "attachment", c.EmailMode)
}

func TestLoad_RejectsUnknownStrategy(t *testing.T) {
	t.Setenv("ORDER_ID_STRATEGY", "uuid")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORDER_ID_STRATEGY")
}

func TestValidate(t *testing.T) {
	base, err := Load()
	require.NoError(t, err)

	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"empty sentinel":       {func(c *Config) { c.PaymentConfirmedStatus = "" }, "PAYMENT_CONFIRMED_STATUS"},
		"negative seed":        {func(c *Config) { c.OrderIDSeed = -1 }, "ORDER_ID_SEED"},
		"smtp without host":    {func(c *Config) { c.EmailTransport = TransportSMTP; c.SMTPHost = "" }, "SMTP_HOST"},
		"kafka without broker": {func(c *Config) { c.ConfirmationDispatch = DispatchKafka; c.KafkaBrokers = nil }, "KAFKA_BROKERS"},
		"bad timezone":         {func(c *Config) { c.ExportTimezone = "Mars/Olympus" }, "EXPORT_TIMEZONE"},
		"bad email mode":       {func(c *Config) { c.EmailMode = "inline" }, "EMAIL_MODE"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	smtp := base
	smtp.EmailTransport = TransportSMTP
	smtp.SMTPHost = "smtp.example.com"
	assert.NoError(t, smtp.Validate())
}
