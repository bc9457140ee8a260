package organization

import (
	"context"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/auth"
)

// ServiceInterface defines the contract for organization business logic
type ServiceInterface interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (*CreatedOrganization, error)
	Get(ctx context.Context, name string) (*OrganizationResponse, error)
	Rename(ctx context.Context, req UpdateOrganizationRequest) (*OrganizationResponse, error)
	Delete(ctx context.Context, name string, principal *auth.Principal) (bool, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
