package partnerresource

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	partnerResourcesTable = "partner_resources"
)

// PartnerResourceRow represents the database row for a partner resource
type PartnerResourceRow struct {
	EntityID          string         `db:"entity_id"`
	ResourceID        string         `db:"resource_id"`
	TenantID          string         `db:"tenant_id"`
	Location          sql.NullString `db:"location"`
	Active            bool           `db:"active"`
	ProvisioningState sql.NullString `db:"provisioning_state"`
	CreatedAt         sql.NullTime   `db:"created_at"`
	UpdatedAt         sql.NullTime   `db:"updated_at"`
}

var partnerResourceStruct = database.NewStruct(new(PartnerResourceRow))

// FromPartnerResource converts a domain model to a database row
func FromPartnerResource(p *models.PartnerResourceEntity) *PartnerResourceRow {
	return &PartnerResourceRow{
		EntityID:          p.EntityID,
		ResourceID:        p.ResourceID,
		TenantID:          p.TenantID,
		Location:          sql.NullString{String: p.Location, Valid: p.Location != ""},
		Active:            p.Active,
		ProvisioningState: sql.NullString{String: string(p.ProvisioningState), Valid: p.ProvisioningState != ""},
		CreatedAt:         sql.NullTime{Time: p.CreatedAt, Valid: !p.CreatedAt.IsZero()},
		UpdatedAt:         sql.NullTime{Time: p.UpdatedAt, Valid: !p.UpdatedAt.IsZero()},
	}
}

// ToPartnerResource converts a database row to a domain model
func ToPartnerResource(row *PartnerResourceRow) *models.PartnerResourceEntity {
	return &models.PartnerResourceEntity{
		EntityID:          row.EntityID,
		ResourceID:        row.ResourceID,
		TenantID:          row.TenantID,
		Location:          row.Location.String,
		Active:            row.Active,
		ProvisioningState: models.ProvisioningState(row.ProvisioningState.String),
		CreatedAt:         row.CreatedAt.Time,
		UpdatedAt:         row.UpdatedAt.Time,
	}
}

// ToPartnerResources converts a slice of database rows to domain models
func ToPartnerResources(rows []PartnerResourceRow) []models.PartnerResourceEntity {
	out := make([]models.PartnerResourceEntity, len(rows))
	for i := range rows {
		out[i] = *ToPartnerResource(&rows[i])
	}
	return out
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
