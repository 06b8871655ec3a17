package notification

import (
	"context"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
)

func silentLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func key(tenantID, partnerEntityID, monitoredResourceID string) string {
	return tenantID + "|" + partnerEntityID + "|" + strings.ToUpper(monitoredResourceID)
}

type fakePartners struct {
	byEntity map[string]models.PartnerResourceEntity
	listErr  error
}

func newFakePartners(partners ...models.PartnerResourceEntity) *fakePartners {
	f := &fakePartners{byEntity: map[string]models.PartnerResourceEntity{}}
	for _, p := range partners {
		f.byEntity[p.EntityID] = p
	}
	return f
}

func (f *fakePartners) List(_ context.Context, resourceID string) ([]models.PartnerResourceEntity, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []models.PartnerResourceEntity{}
	for _, p := range f.byEntity {
		if strings.EqualFold(p.ResourceID, resourceID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePartners) Get(_ context.Context, entityID string) (*models.PartnerResourceEntity, error) {
	p, ok := f.byEntity[entityID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type fakeRelationships struct {
	mu      sync.Mutex
	records map[string]models.MonitoringRelationship
	adds    int
	deletes int
	addErr  error
	delErr  error
}

func newFakeRelationships(records ...models.MonitoringRelationship) *fakeRelationships {
	f := &fakeRelationships{records: map[string]models.MonitoringRelationship{}}
	for _, r := range records {
		f.records[key(r.TenantID, r.PartnerEntityID, r.MonitoredResourceID)] = r
	}
	return f
}

func (f *fakeRelationships) Get(_ context.Context, tenantID, partnerEntityID, monitoredResourceID string) (*models.MonitoringRelationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[key(tenantID, partnerEntityID, monitoredResourceID)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeRelationships) ListByMonitoredResource(_ context.Context, tenantID, monitoredResourceID string) ([]models.MonitoringRelationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.MonitoringRelationship{}
	for _, r := range f.records {
		if r.TenantID == tenantID && r.MonitoredResourceID == monitoredResourceID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRelationships) Add(_ context.Context, r models.MonitoringRelationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	if f.addErr != nil {
		return f.addErr
	}
	k := key(r.TenantID, r.PartnerEntityID, r.MonitoredResourceID)
	if _, ok := f.records[k]; ok {
		return models.ErrDuplicatedKey
	}
	f.records[k] = r
	return nil
}

func (f *fakeRelationships) Delete(_ context.Context, tenantID, partnerEntityID, monitoredResourceID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.delErr != nil {
		return 0, f.delErr
	}
	k := key(tenantID, partnerEntityID, monitoredResourceID)
	if _, ok := f.records[k]; !ok {
		return 0, nil
	}
	delete(f.records, k)
	return 1, nil
}

func (f *fakeRelationships) writes() int {
	return f.adds + f.deletes
}

type fakeStatuses struct {
	mu      sync.Mutex
	records map[string]models.MonitoringStatus
	upserts int
	deletes int
	getErr  error
	delErr  error
}

func newFakeStatuses(records ...models.MonitoringStatus) *fakeStatuses {
	f := &fakeStatuses{records: map[string]models.MonitoringStatus{}}
	for _, s := range records {
		f.records[key(s.TenantID, s.PartnerEntityID, s.MonitoredResourceID)] = s
	}
	return f
}

func (f *fakeStatuses) Get(_ context.Context, tenantID, partnerEntityID, monitoredResourceID string) (*models.MonitoringStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.records[key(tenantID, partnerEntityID, monitoredResourceID)]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStatuses) ListByMonitoredResource(_ context.Context, tenantID, monitoredResourceID string) ([]models.MonitoringStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.MonitoringStatus{}
	for _, s := range f.records {
		if s.TenantID == tenantID && s.MonitoredResourceID == monitoredResourceID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStatuses) AddOrUpdate(_ context.Context, s models.MonitoringStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.records[key(s.TenantID, s.PartnerEntityID, s.MonitoredResourceID)] = s
	return nil
}

func (f *fakeStatuses) Delete(_ context.Context, tenantID, partnerEntityID, monitoredResourceID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.delErr != nil {
		return 0, f.delErr
	}
	k := key(tenantID, partnerEntityID, monitoredResourceID)
	if _, ok := f.records[k]; !ok {
		return 0, nil
	}
	delete(f.records, k)
	return 1, nil
}

func (f *fakeStatuses) writes() int {
	return f.upserts + f.deletes
}

type restoreCall struct {
	resourceID, settingsName, monitorID, tenantID string
}

type fakeSettings struct {
	model     *models.DiagnosticSettingsModel
	getErr    error
	live      []models.DiagnosticSettingsModel
	listErr   error
	createErr error

	gets     int
	restores []restoreCall
}

func (f *fakeSettings) GetResourceDiagnosticSettings(_ context.Context, _, _ string) (*models.DiagnosticSettingsModel, error) {
	f.gets++
	return f.model, f.getErr
}

func (f *fakeSettings) ListResourceDiagnosticSettings(_ context.Context, _, _ string) ([]models.DiagnosticSettingsModel, error) {
	return f.live, f.listErr
}

func (f *fakeSettings) CreateOrUpdateResourceDiagnosticSetting(_ context.Context, resourceID, settingsName, monitorID, tenantID string) error {
	f.restores = append(f.restores, restoreCall{resourceID, settingsName, monitorID, tenantID})
	return f.createErr
}

type fakeSelector struct {
	v2  bool
	err error
}

func (f fakeSelector) IsV2Subscription(context.Context, string) (bool, error) {
	return f.v2, f.err
}

type fakeManager struct {
	calls []models.DiagnosticSettingsNotification
	err   error
}

func (f *fakeManager) ProcessNotification(_ context.Context, n models.DiagnosticSettingsNotification) error {
	f.calls = append(f.calls, n)
	return f.err
}

type fakeLocker struct {
	keys []string
	err  error
}

func (f *fakeLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return f.err
	}
	return fn(ctx)
}
