package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/atelier-crm/atelier-crm/internal/audit"
	"github.com/atelier-crm/atelier-crm/internal/billing"
	"github.com/atelier-crm/atelier-crm/internal/billing/numbering"
	"github.com/atelier-crm/atelier-crm/internal/crm"
	"github.com/atelier-crm/atelier-crm/internal/deals"
	"github.com/atelier-crm/atelier-crm/internal/finance"
	"github.com/atelier-crm/atelier-crm/internal/shared"
)

// auditSource marks engine-written audit entries apart from entries written
// through the regular UI paths.
const auditSource = "assistant"

// handlerFunc executes one action and returns the result payload plus the
// human-readable confirmation message.
type handlerFunc func(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error)

// Service is the dispatcher: the single entry point through which the planner
// executes actions. It owns the catalog lookup, entity resolution, parent-link
// enforcement, the uniform envelope, and audit logging of mutations.
type Service struct {
	resolver *Resolver
	crm      *crm.Service
	deals    *deals.Service
	billing  *billing.Service
	finance  *finance.Service
	audit    audit.Recorder
	validate *validator.Validate
	logger   *slog.Logger

	actions  map[string]Action
	handlers map[string]handlerFunc
}

// NewService wires the dispatcher over the domain services.
func NewService(
	resolver *Resolver,
	crmSvc *crm.Service,
	dealsSvc *deals.Service,
	billingSvc *billing.Service,
	financeSvc *finance.Service,
	recorder audit.Recorder,
	logger *slog.Logger,
) *Service {
	s := &Service{
		resolver: resolver,
		crm:      crmSvc,
		deals:    dealsSvc,
		billing:  billingSvc,
		finance:  financeSvc,
		audit:    recorder,
		validate: validator.New(),
		logger:   logger,
		actions:  make(map[string]Action),
	}
	for _, action := range Catalog() {
		s.actions[action.Name] = action
	}
	s.handlers = s.buildHandlers()
	return s
}

// Actions exposes the catalog for the tools endpoint.
func (s *Service) Actions() []Action {
	return Catalog()
}

// Execute runs one action and always answers through the envelope. Expected
// domain failures (unknown tool, validation, missing link, not found,
// numbering) become success=false envelopes; only infrastructure errors are
// returned for the transport layer to surface as a server fault.
func (s *Service) Execute(ctx context.Context, ownerID uuid.UUID, tool string, args map[string]any) (Envelope, error) {
	action, ok := s.actions[tool]
	if !ok {
		return failure(&Error{
			Kind:    KindUnknownTool,
			Message: fmt.Sprintf("Action inconnue: %q. Le catalogue des actions est fermé.", tool),
		}), nil
	}
	if args == nil {
		args = map[string]any{}
	}

	// Parent-link invariants are checked here, before the handler runs:
	// a rejected call must not have written anything.
	if rule, hasRule := requiredLinks[tool]; hasRule {
		parentID, aerr, err := s.resolveRequiredParent(ctx, ownerID, rule, args)
		if err != nil {
			return Envelope{}, err
		}
		if aerr != nil {
			return failure(aerr), nil
		}
		args = withResolvedRef(args, rule.Kind, parentID)
	}

	data, message, err := s.handlers[tool](ctx, ownerID, args)
	if err != nil {
		if env, handled := s.domainFailure(tool, err); handled {
			return env, nil
		}
		return Envelope{}, fmt.Errorf("assistant: %s: %w", tool, err)
	}

	if action.Mutating {
		s.recordAudit(ctx, ownerID, action, data)
	}
	return Envelope{Success: true, Data: data, Message: message}, nil
}

func (s *Service) resolveRequiredParent(ctx context.Context, ownerID uuid.UUID, rule linkRule, args map[string]any) (uuid.UUID, *Error, error) {
	id := stringArg(args, string(rule.Kind)+"_id")
	name := stringArg(args, string(rule.Kind)+"_name")
	if id == "" && name == "" {
		return uuid.Nil, missingLinkErr(rule), nil
	}
	parentID, err := s.resolver.Resolve(ctx, ownerID, rule.Kind, id, name)
	if err != nil {
		var aerr *Error
		if errors.As(err, &aerr) {
			return uuid.Nil, aerr, nil
		}
		return uuid.Nil, nil, err
	}
	if parentID == uuid.Nil {
		return uuid.Nil, missingLinkErr(rule), nil
	}
	return parentID, nil, nil
}

// domainFailure maps expected domain errors onto their envelope. Anything
// unmapped is infrastructure and propagates.
func (s *Service) domainFailure(tool string, err error) (Envelope, bool) {
	var aerr *Error
	switch {
	case errors.As(err, &aerr):
		return failure(aerr), true
	case errors.Is(err, shared.ErrNotFound):
		return failure(&Error{Kind: KindNotFound, Message: "Entité introuvable."}), true
	case errors.Is(err, numbering.ErrNumbering):
		return failure(&Error{Kind: KindNumbering,
			Message: "La numérotation du document a échoué. Vérifiez le format configuré dans les réglages."}), true
	case errors.Is(err, deals.ErrDealNotWon):
		return failure(&Error{Kind: KindValidation,
			Message:    "Seul un deal gagné peut devenir une mission. Passez d'abord le deal au statut won avec update_deal.",
			NextAction: "update_deal"}), true
	case errors.Is(err, billing.ErrInvalidStatus):
		return failure(validationErr("Statut de document invalide (%s).", tool)), true
	default:
		return Envelope{}, false
	}
}

func (s *Service) recordAudit(ctx context.Context, ownerID uuid.UUID, action Action, data map[string]any) {
	id := entityID(data)
	if id == "" {
		s.logger.Warn("audit entry skipped, result carries no id", "action", action.Name)
		return
	}
	entry := audit.Entry{
		OwnerID:     ownerID,
		Action:      action.Name,
		EntityType:  action.EntityType,
		EntityID:    id,
		EntityTitle: entityTitle(action.EntityType, data),
		Source:      auditSource,
		At:          time.Now().UTC(),
	}
	// Audit is best effort: the mutation already committed, so a logging
	// failure must not turn the call into an error.
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed",
			"action", action.Name, "entity_type", action.EntityType, "entity_id", id, "error", err)
	}
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// withResolvedRef copies the argument bag with the parent reference replaced
// by its resolved id, so handlers never re-run the search.
func withResolvedRef(args map[string]any, kind Kind, id uuid.UUID) map[string]any {
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out[string(kind)+"_id"] = id.String()
	delete(out, string(kind)+"_name")
	return out
}
