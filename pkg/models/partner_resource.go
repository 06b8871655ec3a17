package models

import "time"

// ProvisioningState mirrors the ARM provisioning state of a partner monitor.
type ProvisioningState string

const (
	ProvisioningStateSucceeded ProvisioningState = "Succeeded"
	ProvisioningStateCreating  ProvisioningState = "Creating"
	ProvisioningStateDeleting  ProvisioningState = "Deleting"
	ProvisioningStateFailed    ProvisioningState = "Failed"
)

// PartnerResourceEntity is a registered partner monitor.
// ResourceID is stored upper-cased; EntityID never changes once created.
type PartnerResourceEntity struct {
	EntityID          string            `json:"entity_id" db:"entity_id"`
	ResourceID        string            `json:"resource_id" db:"resource_id"`
	TenantID          string            `json:"tenant_id" db:"tenant_id"`
	Location          string            `json:"location" db:"location"`
	Active            bool              `json:"active" db:"active"`
	ProvisioningState ProvisioningState `json:"provisioning_state" db:"provisioning_state"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

// CreatePartnerResourceRequest is used to register a partner monitor.
type CreatePartnerResourceRequest struct {
	ResourceID string `json:"resource_id" validate:"required"`
	TenantID   string `json:"tenant_id" validate:"required"`
	Location   string `json:"location"`
}
