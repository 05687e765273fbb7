package tenants

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
)

// Source names the identity that decided a resolution.
type Source string

const (
	SourceChannel   Source = "channel"
	SourceGroupID   Source = "group_id"
	SourceGroupName Source = "group_name"
	SourceCustomer  Source = "customer"
)

// ErrUnresolved is returned when no identity maps to an active tenant.
var ErrUnresolved = pkgerrors.New(pkgerrors.CodeNotFound, "tenant could not be resolved")

// Identity carries everything an inbound event reveals about its owner.
type Identity struct {
	InstanceID     string
	ConnectedPhone string
	GroupID        string
	GroupName      string
	SenderPhone    string
}

// Resolution is a successfully resolved tenant.
type Resolution struct {
	Tenant   *models.Tenant
	Source   Source
	Location *time.Location
}

type lookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	IDsByChannel(ctx context.Context, instanceID, phone string) ([]uuid.UUID, error)
	IDsByGroupID(ctx context.Context, groupID string) ([]uuid.UUID, error)
	IDsByGroupName(ctx context.Context, name string) ([]uuid.UUID, error)
	IDsByCustomerPhone(ctx context.Context, phone string) ([]uuid.UUID, error)
}

// Resolver maps an Identity to exactly one tenant. Identities are tried in
// precedence order and the first one with any match decides; more than one
// match at that level is a conflict, never a guess.
type Resolver struct {
	repo            lookup
	defaultLocation *time.Location
}

func NewResolver(repo lookup, defaultLocation *time.Location) (*Resolver, error) {
	if repo == nil {
		return nil, errors.New("tenant repository required")
	}
	if defaultLocation == nil {
		defaultLocation = time.UTC
	}
	return &Resolver{repo: repo, defaultLocation: defaultLocation}, nil
}

func (r *Resolver) Resolve(ctx context.Context, id Identity) (*Resolution, error) {
	steps := []struct {
		source Source
		find   func() ([]uuid.UUID, error)
	}{
		{SourceChannel, func() ([]uuid.UUID, error) { return r.repo.IDsByChannel(ctx, id.InstanceID, id.ConnectedPhone) }},
		{SourceGroupID, func() ([]uuid.UUID, error) { return r.repo.IDsByGroupID(ctx, id.GroupID) }},
		{SourceGroupName, func() ([]uuid.UUID, error) { return r.repo.IDsByGroupName(ctx, id.GroupName) }},
		{SourceCustomer, func() ([]uuid.UUID, error) { return r.repo.IDsByCustomerPhone(ctx, id.SenderPhone) }},
	}

	for _, step := range steps {
		ids, err := step.find()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant by "+string(step.source))
		}
		switch len(ids) {
		case 0:
			continue
		case 1:
			tenant, err := r.repo.Get(ctx, ids[0])
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, ErrUnresolved
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant")
			}
			return &Resolution{Tenant: tenant, Source: step.source, Location: r.location(tenant)}, nil
		default:
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "ambiguous tenant mapping").WithDetails(map[string]any{
				"source":     step.source,
				"tenant_ids": ids,
			})
		}
	}
	return nil, ErrUnresolved
}

func (r *Resolver) location(tenant *models.Tenant) *time.Location {
	if tenant.Timezone == "" {
		return r.defaultLocation
	}
	loc, err := time.LoadLocation(tenant.Timezone)
	if err != nil {
		return r.defaultLocation
	}
	return loc
}
