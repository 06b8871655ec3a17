package models

// LogSetting is one log category (or category group) of a diagnostic setting.
type LogSetting struct {
	Category      string `json:"category,omitempty"`
	CategoryGroup string `json:"category_group,omitempty"`
	Enabled       bool   `json:"enabled"`
}

// MetricSetting is one metric category of a diagnostic setting.
type MetricSetting struct {
	Category string `json:"category,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// DiagnosticSettingsModel is the live state of a diagnostic setting in Azure.
type DiagnosticSettingsModel struct {
	ID                          string          `json:"id"`
	Name                        string          `json:"name"`
	MarketplacePartnerID        string          `json:"marketplace_partner_id,omitempty"`
	EventHubAuthorizationRuleID string          `json:"event_hub_authorization_rule_id,omitempty"`
	EventHubName                string          `json:"event_hub_name,omitempty"`
	Logs                        []LogSetting    `json:"logs,omitempty"`
	Metrics                     []MetricSetting `json:"metrics,omitempty"`
}

// HasDisabledLogs reports whether any log category is turned off.
func (m *DiagnosticSettingsModel) HasDisabledLogs() bool {
	if m == nil {
		return false
	}
	for _, l := range m.Logs {
		if !l.Enabled {
			return true
		}
	}
	return false
}
