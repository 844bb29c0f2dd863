package assistant

import (
	"context"

	"github.com/google/uuid"

	"github.com/atelier-crm/atelier-crm/internal/crm"
	"github.com/atelier-crm/atelier-crm/internal/deals"
)

// serviceDirectory adapts the crm and deals search methods to the resolver.
type serviceDirectory struct {
	crm   *crm.Service
	deals *deals.Service
}

// NewDirectory exposes the domain name searches as a resolver directory.
func NewDirectory(crmSvc *crm.Service, dealsSvc *deals.Service) Directory {
	return &serviceDirectory{crm: crmSvc, deals: dealsSvc}
}

func (d *serviceDirectory) SearchClient(ctx context.Context, ownerID uuid.UUID, name string) (uuid.UUID, error) {
	client, err := d.crm.FindClientByName(ctx, ownerID, name)
	if err != nil {
		return uuid.Nil, err
	}
	return client.ID, nil
}

func (d *serviceDirectory) SearchContact(ctx context.Context, ownerID uuid.UUID, name string) (uuid.UUID, error) {
	contact, err := d.crm.FindContactByName(ctx, ownerID, name)
	if err != nil {
		return uuid.Nil, err
	}
	return contact.ID, nil
}

func (d *serviceDirectory) SearchDeal(ctx context.Context, ownerID uuid.UUID, name string) (uuid.UUID, error) {
	deal, err := d.deals.FindDealByName(ctx, ownerID, name)
	if err != nil {
		return uuid.Nil, err
	}
	return deal.ID, nil
}

func (d *serviceDirectory) SearchMission(ctx context.Context, ownerID uuid.UUID, name string) (uuid.UUID, error) {
	mission, err := d.deals.FindMissionByName(ctx, ownerID, name)
	if err != nil {
		return uuid.Nil, err
	}
	return mission.ID, nil
}
