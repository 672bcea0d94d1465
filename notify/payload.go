package notify

import (
	"fmt"

	"warden/core"
)

var severityColor = map[core.Severity]string{
	core.SeverityCritical: "#d32f2f",
	core.SeverityHigh:     "#f44336",
	core.SeverityMedium:   "#ff9800",
	core.SeverityLow:      "#2196f3",
}

func webhookPayload(alert *core.SecurityAlert) map[string]interface{} {
	return map[string]interface{}{
		"alert_id":  alert.ID,
		"severity":  alert.Severity,
		"type":      alert.Type,
		"message":   alert.Message,
		"ip":        alert.IP,
		"timestamp": alert.Timestamp,
		"metadata":  alert.Metadata,
	}
}

func slackPayload(alert *core.SecurityAlert) map[string]interface{} {
	color, ok := severityColor[alert.Severity]
	if !ok {
		color = "#757575"
	}

	fields := []map[string]interface{}{
		{"title": "Type", "value": string(alert.Type), "short": true},
		{"title": "Alert ID", "value": fmt.Sprintf("`%s`", alert.ID), "short": true},
	}
	if alert.IP != "" {
		fields = append(fields, map[string]interface{}{
			"title": "Source IP",
			"value": fmt.Sprintf("`%s`", alert.IP),
			"short": true,
		})
	}

	return map[string]interface{}{
		"text": fmt.Sprintf("*%s security alert*: %s", alert.Severity, alert.Message),
		"attachments": []map[string]interface{}{
			{
				"color":  color,
				"fields": fields,
				"footer": "Warden",
				"ts":     alert.Timestamp.Unix(),
			},
		},
	}
}
