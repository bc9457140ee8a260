package organization

import "time"

// Organization is a registered tenant. PartitionID is derived from Name and
// changes on rename; ID and AdminID never change.
type Organization struct {
	ID          string
	Name        string
	PartitionID string
	// Database names the registry database (Mongo) or schema (Postgres)
	// holding the record.
	Database  string
	AdminID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Admin is the single administrator of an organization.
type Admin struct {
	ID           string
	Email        string
	PasswordHash string
	// Organization is the owning organization's display name, kept in sync on
	// rename.
	Organization string
	CreatedAt    time.Time
}

// RetainedPartition is a partition left behind by a rename.
type RetainedPartition struct {
	PartitionID    string
	OrganizationID string
	RetainedAt     time.Time
}

// CreateOrganizationRequest represents the request to create a new organization
type CreateOrganizationRequest struct {
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
}

// UpdateOrganizationRequest renames an organization and optionally replaces
// the admin credentials. NewNameAlt carries the legacy field name.
type UpdateOrganizationRequest struct {
	OrganizationName string `json:"organization_name"`
	NewName          string `json:"new_organization_name"`
	NewNameAlt       string `json:"organization_name_new"`
	Email            string `json:"email,omitempty"`
	Password         string `json:"password,omitempty"`
}

// TargetName returns the requested new name, preferring new_organization_name.
func (r UpdateOrganizationRequest) TargetName() string {
	if r.NewName != "" {
		return r.NewName
	}
	return r.NewNameAlt
}

// DeleteOrganizationRequest represents the body of a delete call
type DeleteOrganizationRequest struct {
	OrganizationName string `json:"organization_name"`
}

// LoginRequest represents admin credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreatedOrganization is returned by Create.
type CreatedOrganization struct {
	ID          string `json:"id"`
	Name        string `json:"organization_name"`
	PartitionID string `json:"partition_id"`
	AdminID     string `json:"admin_id"`
}

// ConnectionInfo mirrors the registry location of an organization record.
type ConnectionInfo struct {
	DB string `json:"db"`
}

// OrganizationResponse represents the organization data returned to clients
type OrganizationResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"organization_name"`
	PartitionID string         `json:"partition_id"`
	AdminID     string         `json:"admin_id"`
	Connection  ConnectionInfo `json:"connection"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// LoginResponse carries the session token. OrganizationID is null for an
// admin without an organization.
type LoginResponse struct {
	Token          string  `json:"token"`
	OrganizationID *string `json:"organization_id"`
}

func toResponse(org *Organization) *OrganizationResponse {
	return &OrganizationResponse{
		ID:          org.ID,
		Name:        org.Name,
		PartitionID: org.PartitionID,
		AdminID:     org.AdminID,
		Connection:  ConnectionInfo{DB: org.Database},
		CreatedAt:   org.CreatedAt,
		UpdatedAt:   org.UpdatedAt,
	}
}
