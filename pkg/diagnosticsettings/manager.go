package diagnosticsettings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	AuthModeDefault      = "default"
	AuthModeClientSecret = "client-secret"
)

// ErrUnavailable wraps every failed Azure diagnostic settings call other than a 404 on read.
var ErrUnavailable = errors.New("diagnostic settings unavailable")

// SettingsClient is the part of armmonitor.DiagnosticSettingsClient the manager uses.
type SettingsClient interface {
	Get(ctx context.Context, resourceURI, name string, options *armmonitor.DiagnosticSettingsClientGetOptions) (armmonitor.DiagnosticSettingsClientGetResponse, error)
	CreateOrUpdate(ctx context.Context, resourceURI, name string, parameters armmonitor.DiagnosticSettingsResource, options *armmonitor.DiagnosticSettingsClientCreateOrUpdateOptions) (armmonitor.DiagnosticSettingsClientCreateOrUpdateResponse, error)
	NewListPager(resourceURI string, options *armmonitor.DiagnosticSettingsClientListOptions) *runtime.Pager[armmonitor.DiagnosticSettingsClientListResponse]
}

// ClientFactory builds a SettingsClient authenticated against a tenant.
type ClientFactory func(tenantID string) (SettingsClient, error)

type Config struct {
	Cloud        string
	AuthMode     string
	ClientID     string
	ClientSecret string
	CallTimeout  time.Duration

	// Log settings written when restoring a platform managed setting.
	LogCategoryGroup          string
	SubscriptionLogCategories []string
}

// AzureManager reads and writes diagnostic settings through ARM, one client per tenant.
type AzureManager struct {
	config  Config
	logger  ectologger.Logger
	factory ClientFactory

	mu      sync.Mutex
	clients map[string]SettingsClient
}

// NewAzureManager builds a manager that authenticates with azidentity.
func NewAzureManager(logger ectologger.Logger, config Config) (*AzureManager, error) {
	cloudConfig, err := cloudConfiguration(config.Cloud)
	if err != nil {
		return nil, err
	}
	return NewAzureManagerWithFactory(logger, config, credentialClientFactory(config, cloudConfig)), nil
}

// NewAzureManagerWithFactory builds a manager around an existing client factory.
func NewAzureManagerWithFactory(logger ectologger.Logger, config Config, factory ClientFactory) *AzureManager {
	return &AzureManager{
		config:  config,
		logger:  logger,
		factory: factory,
		clients: map[string]SettingsClient{},
	}
}

func cloudConfiguration(name string) (cloud.Configuration, error) {
	switch strings.ToLower(name) {
	case "", "public", "azurepublic":
		return cloud.AzurePublic, nil
	case "china", "azurechina":
		return cloud.AzureChina, nil
	case "government", "usgov", "azuregovernment":
		return cloud.AzureGovernment, nil
	default:
		return cloud.Configuration{}, fmt.Errorf("unknown azure cloud %q", name)
	}
}

func credentialClientFactory(config Config, cloudConfig cloud.Configuration) ClientFactory {
	clientOptions := policy.ClientOptions{Cloud: cloudConfig}

	return func(tenantID string) (SettingsClient, error) {
		var (
			cred azcore.TokenCredential
			err  error
		)
		switch config.AuthMode {
		case AuthModeClientSecret:
			cred, err = azidentity.NewClientSecretCredential(tenantID, config.ClientID, config.ClientSecret,
				&azidentity.ClientSecretCredentialOptions{ClientOptions: clientOptions})
		default:
			cred, err = azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
				ClientOptions: clientOptions,
				TenantID:      tenantID,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create credential for tenant %s: %w", tenantID, err)
		}

		return armmonitor.NewDiagnosticSettingsClient(cred, &arm.ClientOptions{ClientOptions: clientOptions})
	}
}

func (m *AzureManager) client(tenantID string) (SettingsClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.clients[tenantID]; ok {
		return c, nil
	}
	c, err := m.factory(tenantID)
	if err != nil {
		return nil, err
	}
	m.clients[tenantID] = c
	return c, nil
}

func (m *AzureManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.config.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.config.CallTimeout)
}

// GetResourceDiagnosticSettings fetches a diagnostic setting by id. A missing setting returns nil, nil.
func (m *AzureManager) GetResourceDiagnosticSettings(ctx context.Context, diagnosticSettingsID, tenantID string) (*models.DiagnosticSettingsModel, error) {
	ctx, span := tracing.StartSpan(ctx, "diagnosticsettings.AzureManager.GetResourceDiagnosticSettings")
	defer span.End()

	log := m.logger.WithContext(ctx).WithFields(map[string]any{
		"diagnostic_settings_id": diagnosticSettingsID,
		"tenant_id":              tenantID,
	})

	resourceURI := strings.TrimPrefix(ExtractMonitoredResourceID(diagnosticSettingsID), "/")
	name := ExtractDiagnosticSettingsName(diagnosticSettingsID)
	if resourceURI == "" || name == "" {
		return nil, fmt.Errorf("%w: malformed diagnostic settings id %s", ErrUnavailable, diagnosticSettingsID)
	}

	client, err := m.client(tenantID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	callCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	resp, err := client.Get(callCtx, resourceURI, name, nil)
	if err != nil {
		if isNotFound(err) {
			metrics.AzureCallsTotal.WithLabelValues("get", "not_found").Inc()
			log.Debug("Diagnostic setting not found")
			return nil, nil
		}
		metrics.AzureCallsTotal.WithLabelValues("get", metrics.OutcomeError).Inc()
		tracing.RecordError(span, err)
		log.WithError(err).Warn("Failed to get diagnostic setting")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	metrics.AzureCallsTotal.WithLabelValues("get", metrics.OutcomeSuccess).Inc()

	model := toModel(resp.DiagnosticSettingsResource)
	return &model, nil
}

// ListResourceDiagnosticSettings lists every diagnostic setting attached to a resource.
func (m *AzureManager) ListResourceDiagnosticSettings(ctx context.Context, resourceID, tenantID string) ([]models.DiagnosticSettingsModel, error) {
	ctx, span := tracing.StartSpan(ctx, "diagnosticsettings.AzureManager.ListResourceDiagnosticSettings")
	defer span.End()

	client, err := m.client(tenantID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	callCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	settings := []models.DiagnosticSettingsModel{}
	pager := client.NewListPager(strings.TrimPrefix(resourceID, "/"), nil)
	for pager.More() {
		page, err := pager.NextPage(callCtx)
		if err != nil {
			metrics.AzureCallsTotal.WithLabelValues("list", metrics.OutcomeError).Inc()
			tracing.RecordError(span, err)
			m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"monitored_resource_id": resourceID,
				"tenant_id":             tenantID,
			}).Warn("Failed to list diagnostic settings")
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		for _, resource := range page.Value {
			if resource == nil {
				continue
			}
			settings = append(settings, toModel(*resource))
		}
	}
	metrics.AzureCallsTotal.WithLabelValues("list", metrics.OutcomeSuccess).Inc()

	return settings, nil
}

// CreateOrUpdateResourceDiagnosticSetting points the named setting on resourceID at the partner monitor.
func (m *AzureManager) CreateOrUpdateResourceDiagnosticSetting(ctx context.Context, resourceID, settingsName, monitorID, tenantID string) error {
	ctx, span := tracing.StartSpan(ctx, "diagnosticsettings.AzureManager.CreateOrUpdateResourceDiagnosticSetting")
	defer span.End()

	log := m.logger.WithContext(ctx).WithFields(map[string]any{
		"monitored_resource_id":    resourceID,
		"diagnostic_settings_name": settingsName,
		"monitor_id":               monitorID,
		"tenant_id":                tenantID,
	})

	client, err := m.client(tenantID)
	if err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	callCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	parameters := armmonitor.DiagnosticSettingsResource{
		Properties: &armmonitor.DiagnosticSettings{
			MarketplacePartnerID: to.Ptr(monitorID),
			Logs:                 m.restoreLogSettings(resourceID),
		},
	}
	if _, err := client.CreateOrUpdate(callCtx, strings.TrimPrefix(resourceID, "/"), settingsName, parameters, nil); err != nil {
		metrics.AzureCallsTotal.WithLabelValues("create_or_update", metrics.OutcomeError).Inc()
		tracing.RecordError(span, err)
		log.WithError(err).Error("Failed to create or update diagnostic setting")
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	metrics.AzureCallsTotal.WithLabelValues("create_or_update", metrics.OutcomeSuccess).Inc()

	log.Info("Diagnostic setting created or updated")
	return nil
}

// restoreLogSettings enables the configured category group on resources and
// the configured categories on subscriptions, which do not support groups.
func (m *AzureManager) restoreLogSettings(resourceID string) []*armmonitor.LogSettings {
	if IsSubscriptionResourceID(resourceID) {
		categories := ectolinq.Filter(m.config.SubscriptionLogCategories, func(c string) bool { return strings.TrimSpace(c) != "" })
		return ectolinq.Map(categories, func(c string) *armmonitor.LogSettings {
			return &armmonitor.LogSettings{Category: to.Ptr(strings.TrimSpace(c)), Enabled: to.Ptr(true)}
		})
	}

	group := m.config.LogCategoryGroup
	if group == "" {
		group = "allLogs"
	}
	return []*armmonitor.LogSettings{{CategoryGroup: to.Ptr(group), Enabled: to.Ptr(true)}}
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func toModel(resource armmonitor.DiagnosticSettingsResource) models.DiagnosticSettingsModel {
	model := models.DiagnosticSettingsModel{
		ID:   deref(resource.ID),
		Name: deref(resource.Name),
	}
	props := resource.Properties
	if props == nil {
		return model
	}

	model.MarketplacePartnerID = deref(props.MarketplacePartnerID)
	model.EventHubAuthorizationRuleID = deref(props.EventHubAuthorizationRuleID)
	model.EventHubName = deref(props.EventHubName)
	for _, l := range props.Logs {
		if l == nil {
			continue
		}
		model.Logs = append(model.Logs, models.LogSetting{
			Category:      deref(l.Category),
			CategoryGroup: deref(l.CategoryGroup),
			Enabled:       l.Enabled != nil && *l.Enabled,
		})
	}
	for _, mt := range props.Metrics {
		if mt == nil {
			continue
		}
		model.Metrics = append(model.Metrics, models.MetricSetting{
			Category: deref(mt.Category),
			Enabled:  mt.Enabled != nil && *mt.Enabled,
		})
	}
	return model
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
