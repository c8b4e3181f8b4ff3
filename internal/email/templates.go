package email

import (
	"fmt"
	"html"
	"strings"
)

// StockAlert is one item row of a low-stock alert
type StockAlert struct {
	ItemID  int64
	Name    string
	Stock   int
	Trigger string // event type that produced the figure
	Source  string // movement id or order number
}

// BuildLowStockAlertBody builds the HTML body for a low-stock alert email
func BuildLowStockAlertBody(threshold int, alerts []StockAlert) string {
	var rows strings.Builder
	for _, a := range alerts {
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("#%d", a.ItemID)
		}
		color := "#e67e22"
		if a.Stock <= 0 {
			color = "#c0392b"
		}
		rows.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right; color: %s; font-weight: bold;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; font-family: monospace;">%s</td>
			</tr>`,
			html.EscapeString(name),
			color,
			a.Stock,
			html.EscapeString(a.Trigger),
			html.EscapeString(a.Source),
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #2c3e50; padding: 24px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 22px;">Low stock</h1>
	</div>

	<div style="background: #fff; padding: 24px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">The following items are at or below the alert threshold of <strong>%d</strong>.</p>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left;">Item</th>
					<th style="padding: 12px; text-align: right;">Stock</th>
					<th style="padding: 12px; text-align: left;">Event</th>
					<th style="padding: 12px; text-align: left;">Reference</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">Stock is derived from the ledger at the time of the event and may have changed since.</p>
	</div>
</body>
</html>`, threshold, rows.String())
}
