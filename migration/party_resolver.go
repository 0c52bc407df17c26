package migration

import (
	"context"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"github.com/sirupsen/logrus"
)

const placeholderSuffix = " (eBoekhouden Import)"
const internalSuffix = " (Internal)"
const placeholderNameLimit = 40

type PartyResolver struct {
	api         APIClient
	companyName string
	logger      *logrus.Logger
	relations   map[int]*eboekhouden.Relation
}

func NewPartyResolver(api APIClient, companyName string, logger *logrus.Logger) *PartyResolver {
	return &PartyResolver{
		api:         api,
		companyName: companyName,
		logger:      logger,
		relations:   make(map[int]*eboekhouden.Relation),
	}
}

// PreloadRelations fetches the full relation list once, so resolving parties
// during the import does not hit the relation detail endpoint per mutation.
func (r *PartyResolver) PreloadRelations(ctx context.Context) (int, error) {
	relations, err := r.api.FetchRelations(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching relations: %w", err)
	}
	for _, relation := range relations {
		r.relations[relation.ID] = relation
	}
	return len(relations), nil
}

// relationDetail serves a relation from the preloaded list, falling back to
// the detail endpoint for ids the listing did not carry.
func (r *PartyResolver) relationDetail(ctx context.Context, relationId int) (*eboekhouden.Relation, error) {
	if relation, ok := r.relations[relationId]; ok {
		return relation, nil
	}
	relation, err := r.api.FetchRelationDetail(ctx, relationId)
	if err != nil {
		return nil, err
	}
	if relation != nil {
		r.relations[relationId] = relation
	}
	return relation, nil
}

// placeholderPartyName derives a review-flagged party name from a mutation
// description: cleaned, truncated, and clearly labeled as an import artifact.
func placeholderPartyName(description string) string {
	name := strings.Join(strings.Fields(description), " ")
	if len(name) > placeholderNameLimit {
		name = strings.TrimSpace(name[:placeholderNameLimit])
	}
	if name == "" {
		name = "Unknown Relation"
	}
	return name + placeholderSuffix
}

func (r *PartyResolver) relationInput(relation *eboekhouden.Relation, relationId int) (string, *models.NewCustomer) {
	name := relation.DisplayName()
	if name == "" {
		name = fmt.Sprintf("Relation %d", relationId)
	}
	address := strings.TrimSpace(strings.Join([]string{
		strings.TrimSpace(relation.Address),
		strings.TrimSpace(strings.TrimSpace(relation.Postcode) + " " + strings.TrimSpace(relation.City)),
		strings.TrimSpace(relation.Country),
	}, "\n"))
	return name, &models.NewCustomer{
		Name:                  name,
		Email:                 strings.TrimSpace(relation.Email),
		Phone:                 strings.TrimSpace(relation.Phone),
		Address:               strings.Trim(address, "\n"),
		VatNumber:             strings.TrimSpace(relation.VatNumber),
		EboekhoudenRelationId: &relationId,
	}
}

// ResolveCustomer maps an external relation id to a customer, creating one
// from the relation payload when absent. Existing customers are matched first
// by stored relation id, then by normalized name. Without a usable relation,
// a review-flagged placeholder derived from the description is used.
func (r *PartyResolver) ResolveCustomer(ctx context.Context, store Store, relationId *int, description string) (*models.Customer, error) {
	if relationId != nil {
		customer, err := store.CustomerByRelationId(ctx, *relationId)
		if err != nil {
			return nil, err
		}
		if customer != nil {
			return customer, nil
		}

		relation, err := r.relationDetail(ctx, *relationId)
		if err != nil {
			return nil, err
		}
		if relation != nil {
			name, input := r.relationInput(relation, *relationId)
			existing, err := store.CustomerByName(ctx, name)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return existing, nil
			}
			return store.CreateCustomer(ctx, input)
		}
		r.logger.WithField("relation_id", *relationId).Warn("relation unknown to external api, using placeholder customer")
	}

	return r.placeholderCustomer(ctx, store, description)
}

// ResolveSupplier is the supplier-side counterpart of ResolveCustomer.
func (r *PartyResolver) ResolveSupplier(ctx context.Context, store Store, relationId *int, description string) (*models.Supplier, error) {
	if relationId != nil {
		supplier, err := store.SupplierByRelationId(ctx, *relationId)
		if err != nil {
			return nil, err
		}
		if supplier != nil {
			return supplier, nil
		}

		relation, err := r.relationDetail(ctx, *relationId)
		if err != nil {
			return nil, err
		}
		if relation != nil {
			name, input := r.relationInput(relation, *relationId)
			existing, err := store.SupplierByName(ctx, name)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return existing, nil
			}
			return store.CreateSupplier(ctx, &models.NewSupplier{
				Name:                  input.Name,
				Email:                 input.Email,
				Phone:                 input.Phone,
				Address:               input.Address,
				VatNumber:             input.VatNumber,
				EboekhoudenRelationId: input.EboekhoudenRelationId,
			})
		}
		r.logger.WithField("relation_id", *relationId).Warn("relation unknown to external api, using placeholder supplier")
	}

	return r.placeholderSupplier(ctx, store, description)
}

// InternalCustomer returns the company's own synthetic counterparty, created
// once and reused for internal transfers and memorial bookings.
func (r *PartyResolver) InternalCustomer(ctx context.Context, store Store) (*models.Customer, error) {
	name := r.companyName + internalSuffix
	customer, err := store.CustomerByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		return customer, nil
	}
	return store.CreateCustomer(ctx, &models.NewCustomer{Name: name, IsInternal: true})
}

// InternalSupplier is the supplier-side counterpart of InternalCustomer.
func (r *PartyResolver) InternalSupplier(ctx context.Context, store Store) (*models.Supplier, error) {
	name := r.companyName + internalSuffix
	supplier, err := store.SupplierByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if supplier != nil {
		return supplier, nil
	}
	return store.CreateSupplier(ctx, &models.NewSupplier{Name: name, IsInternal: true})
}

func (r *PartyResolver) placeholderCustomer(ctx context.Context, store Store, description string) (*models.Customer, error) {
	name := placeholderPartyName(description)
	customer, err := store.CustomerByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		return customer, nil
	}
	return store.CreateCustomer(ctx, &models.NewCustomer{Name: name, NeedsReview: true})
}

func (r *PartyResolver) placeholderSupplier(ctx context.Context, store Store, description string) (*models.Supplier, error) {
	name := placeholderPartyName(description)
	supplier, err := store.SupplierByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if supplier != nil {
		return supplier, nil
	}
	return store.CreateSupplier(ctx, &models.NewSupplier{Name: name, NeedsReview: true})
}
