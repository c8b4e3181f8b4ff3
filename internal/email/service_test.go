package email

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_SendLowStockAlert(t *testing.T) {
	svc := NewService("smtp.local", "1025", "ledger@example.com")
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	err := svc.SendLowStockAlert("ops@example.com", 2, []StockAlert{
		{ItemID: 1, Name: "Pen", Stock: 1, Trigger: "OrderCreated", Source: "O1"},
		{ItemID: 2, Name: "<Bag>", Stock: 0, Trigger: "MovementRecorded", Source: "movement 3"},
	})

	require.NoError(t, err)
	assert.Equal(t, "smtp.local:1025", gotAddr)
	assert.Equal(t, "ledger@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: [Stock Alert] Pen, <Bag> at or below 2\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/html")
	assert.Contains(t, gotMsg, "&lt;Bag&gt;")
	assert.False(t, strings.Contains(gotMsg, "<td style=\"padding: 12px; border-bottom: 1px solid #eee;\"><Bag>"))
}

func TestService_SendLowStockAlert_Empty(t *testing.T) {
	svc := NewService("smtp.local", "1025", "ledger@example.com")
	svc.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("must not send")
	}

	assert.NoError(t, svc.SendLowStockAlert("ops@example.com", 2, nil))
}

func TestBuildLowStockAlertBody(t *testing.T) {
	body := BuildLowStockAlertBody(3, []StockAlert{{ItemID: 9, Stock: -1, Trigger: "MovementDeleted", Source: "movement 4"}})

	assert.Contains(t, body, "#9")
	assert.Contains(t, body, "#c0392b")
	assert.Contains(t, body, "<strong>3</strong>")
}
