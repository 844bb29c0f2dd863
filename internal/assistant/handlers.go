package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-crm/atelier-crm/internal/billing"
	"github.com/atelier-crm/atelier-crm/internal/crm"
	"github.com/atelier-crm/atelier-crm/internal/deals"
	"github.com/atelier-crm/atelier-crm/internal/finance"
	"github.com/atelier-crm/atelier-crm/internal/shared"
)

func (s *Service) buildHandlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"create_client":         s.createClient,
		"update_client":         s.updateClient,
		"list_clients":          s.listClients,
		"create_contact":        s.createContact,
		"list_contacts":         s.listContacts,
		"link_contact":          s.linkContact,
		"create_deal":           s.createDeal,
		"update_deal":           s.updateDeal,
		"list_deals":            s.listDeals,
		"create_mission":        s.createMission,
		"update_mission":        s.updateMission,
		"list_missions":         s.listMissions,
		"create_quote":          s.createQuote,
		"update_quote":          s.updateQuote,
		"list_quotes":           s.listQuotes,
		"create_invoice":        s.createInvoice,
		"update_invoice":        s.updateInvoice,
		"list_invoices":         s.listInvoices,
		"create_proposal":       s.createDealDocument(deals.DocProposal),
		"create_brief":          s.createDealDocument(deals.DocBrief),
		"create_delivery_note":  s.createMissionDocument(deals.DocDeliveryNote),
		"create_review_request": s.createMissionDocument(deals.DocReviewRequest),
		"get_financial_summary": s.financialSummary,
		"prepare_send_document": s.prepareSendDocument,
	}
}

// asMap projects a domain value through its JSON shape into the envelope's
// data bag.
func asMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// ref resolves an optional entity reference from the argument bag.
func (s *Service) ref(ctx context.Context, ownerID uuid.UUID, kind Kind, args map[string]any) (uuid.UUID, error) {
	return s.resolver.Resolve(ctx, ownerID, kind,
		stringArg(args, string(kind)+"_id"), stringArg(args, string(kind)+"_name"))
}

type pageArgs struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func (p pageArgs) window() (page, limit, offset int) {
	page = p.Page
	if page < 1 {
		page = 1
	}
	limit = p.PerPage
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}

type lineArg struct {
	Description  string   `json:"description" validate:"required"`
	Quantite     float64  `json:"quantite" validate:"required,gt=0"`
	PrixUnitaire float64  `json:"prix_unitaire" validate:"gte=0"`
	TauxTVA      *float64 `json:"taux_tva" validate:"omitempty,gte=0,lte=100"`
}

func lineInputs(items []lineArg) []billing.LineInput {
	lines := make([]billing.LineInput, 0, len(items))
	for _, it := range items {
		lines = append(lines, billing.LineInput{
			Description:  it.Description,
			Quantite:     it.Quantite,
			PrixUnitaire: it.PrixUnitaire,
			TauxTVA:      it.TauxTVA,
		})
	}
	return lines
}

func (s *Service) createClient(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req struct {
		Name         string         `json:"name" validate:"required"`
		Kind         string         `json:"kind" validate:"omitempty,oneof=individual organization"`
		Email        string         `json:"email" validate:"omitempty,email"`
		Phone        string         `json:"phone"`
		Address      string         `json:"address"`
		CustomFields map[string]any `json:"custom_fields"`
	}
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	client, err := s.crm.CreateClient(ctx, crm.CreateClientRequest{
		OwnerID:      ownerID,
		Kind:         crm.ClientKind(req.Kind),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		CustomFields: req.CustomFields,
	})
	if err != nil {
		return nil, "", err
	}
	return asMap(client), fmt.Sprintf("Client %q créé.", client.Name), nil
}

func (s *Service) updateClient(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	id, err := s.ref(ctx, ownerID, KindClient, args)
	if err != nil {
		return nil, "", err
	}
	if id == uuid.Nil {
		return nil, "", validationErr("Précisez le client à modifier (client_id ou client_name).")
	}
	updates := collectUpdates(args, "name", "email", "phone", "address", "custom_fields")
	client, err := s.crm.UpdateClient(ctx, ownerID, id, updates)
	if err != nil {
		return nil, "", err
	}
	return asMap(client), fmt.Sprintf("Client %q mis à jour.", client.Name), nil
}

func (s *Service) listClients(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req pageArgs
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	page, limit, offset := req.window()
	clients, total, err := s.crm.ListClients(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, "", err
	}
	data := map[string]any{"clients": clients, "count": total, "paging": shared.NewPagination(page, limit, total)}
	return data, fmt.Sprintf("%d client(s).", total), nil
}

func (s *Service) createContact(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email" validate:"omitempty,email"`
		Phone     string `json:"phone"`
	}
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	if req.FirstName == "" && req.LastName == "" {
		return nil, "", validationErr("Un contact requiert au moins un prénom ou un nom.")
	}
	contact, err := s.crm.CreateContact(ctx, crm.CreateContactRequest{
		OwnerID:   ownerID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		return nil, "", err
	}
	data := asMap(contact)
	data["full_name"] = contact.FullName()
	return data, fmt.Sprintf("Contact %q créé.", contact.FullName()), nil
}

func (s *Service) listContacts(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req pageArgs
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	page, limit, offset := req.window()
	contacts, total, err := s.crm.ListContacts(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, "", err
	}
	data := map[string]any{"contacts": contacts, "count": total, "paging": shared.NewPagination(page, limit, total)}
	return data, fmt.Sprintf("%d contact(s).", total), nil
}

func (s *Service) linkContact(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	clientID, err := s.ref(ctx, ownerID, KindClient, args)
	if err != nil {
		return nil, "", err
	}
	if clientID == uuid.Nil {
		return nil, "", validationErr("Précisez le client (client_id ou client_name).")
	}
	contactID, err := s.ref(ctx, ownerID, KindContact, args)
	if err != nil {
		return nil, "", err
	}
	if contactID == uuid.Nil {
		return nil, "", validationErr("Précisez le contact (contact_id ou contact_name).")
	}
	var req struct {
		HandlesBilling    bool   `json:"handles_billing"`
		HandlesOps        bool   `json:"handles_ops"`
		HandlesManagement bool   `json:"handles_management"`
		IsPrimary         bool   `json:"is_primary"`
		PreferredChannel  string `json:"preferred_channel"`
	}
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	link := crm.ClientContact{
		ClientID:          clientID,
		ContactID:         contactID,
		HandlesBilling:    req.HandlesBilling,
		HandlesOps:        req.HandlesOps,
		HandlesManagement: req.HandlesManagement,
		IsPrimary:         req.IsPrimary,
		PreferredChannel:  req.PreferredChannel,
	}
	if err := s.crm.LinkContact(ctx, ownerID, link); err != nil {
		return nil, "", err
	}
	data := asMap(link)
	data["id"] = contactID.String()
	return data, "Contact rattaché au client avec ses rôles.", nil
}

func (s *Service) createDeal(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	clientID, err := s.ref(ctx, ownerID, KindClient, args)
	if err != nil {
		return nil, "", err
	}
	if clientID == uuid.Nil {
		return nil, "", &Error{Kind: KindValidation,
			Message:    "Précisez le client du deal (client_id ou client_name).",
			NextAction: "list_clients"}
	}
	var req struct {
		Title    string  `json:"title" validate:"required"`
		Amount   float64 `json:"amount" validate:"gte=0"`
		Currency string  `json:"currency"`
		Notes    string  `json:"notes"`
	}
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	deal, err := s.deals.CreateDeal(ctx, deals.CreateDealRequest{
		OwnerID:  ownerID,
		ClientID: clientID,
		Title:    req.Title,
		Amount:   req.Amount,
		Currency: req.Currency,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, "", err
	}
	return asMap(deal), fmt.Sprintf("Deal %q créé.", deal.Title), nil
}

func (s *Service) updateDeal(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	id, err := s.ref(ctx, ownerID, KindDeal, args)
	if err != nil {
		return nil, "", err
	}
	if id == uuid.Nil {
		return nil, "", validationErr("Précisez le deal à modifier (deal_id ou deal_name).")
	}
	if status := stringArg(args, "status"); status != "" {
		switch deals.DealStatus(status) {
		case deals.DealOpen, deals.DealWon, deals.DealLost:
		default:
			return nil, "", validationErr("Statut de deal inconnu %q (open, won ou lost).", status)
		}
	}
	updates := collectUpdates(args, "title", "status", "amount", "notes")
	deal, err := s.deals.UpdateDeal(ctx, ownerID, id, updates)
	if err != nil {
		return nil, "", err
	}
	return asMap(deal), fmt.Sprintf("Deal %q mis à jour.", deal.Title), nil
}

func (s *Service) listDeals(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req pageArgs
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	page, limit, offset := req.window()
	list, total, err := s.deals.ListDeals(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, "", err
	}
	data := map[string]any{"deals": list, "count": total, "paging": shared.NewPagination(page, limit, total)}
	return data, fmt.Sprintf("%d deal(s).", total), nil
}

func (s *Service) createMission(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	dealID, err := s.ref(ctx, ownerID, KindDeal, args)
	if err != nil {
		return nil, "", err
	}
	if dealID == uuid.Nil {
		return nil, "", &Error{Kind: KindValidation,
			Message:    "Précisez le deal gagné d'origine (deal_id ou deal_name).",
			NextAction: "list_deals"}
	}
	var req struct {
		Title       string  `json:"title"`
		TotalAmount float64 `json:"total_amount" validate:"gte=0"`
	}
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	mission, err := s.deals.CreateMission(ctx, deals.CreateMissionRequest{
		OwnerID:     ownerID,
		DealID:      dealID,
		Title:       req.Title,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		return nil, "", err
	}
	msg := fmt.Sprintf("Mission %q créée. Reste à facturer: %.2f.", mission.Title, mission.ResteAFacturer)
	return asMap(mission), msg, nil
}

func (s *Service) updateMission(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	id, err := s.ref(ctx, ownerID, KindMission, args)
	if err != nil {
		return nil, "", err
	}
	if id == uuid.Nil {
		return nil, "", validationErr("Précisez la mission à modifier (mission_id ou mission_name).")
	}
	if status := stringArg(args, "status"); status != "" {
		switch deals.MissionStatus(status) {
		case deals.MissionActive, deals.MissionDone:
		default:
			return nil, "", validationErr("Statut de mission inconnu %q (active ou done).", status)
		}
	}
	updates := collectUpdates(args, "title", "status", "total_amount")
	mission, err := s.deals.UpdateMission(ctx, ownerID, id, updates)
	if err != nil {
		return nil, "", err
	}
	msg := fmt.Sprintf("Mission %q mise à jour. Reste à facturer: %.2f.", mission.Title, mission.ResteAFacturer)
	return asMap(mission), msg, nil
}

func (s *Service) listMissions(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req pageArgs
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	page, limit, offset := req.window()
	list, total, err := s.deals.ListMissions(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, "", err
	}
	data := map[string]any{"missions": list, "count": total, "paging": shared.NewPagination(page, limit, total)}
	return data, fmt.Sprintf("%d mission(s).", total), nil
}

func (s *Service) createQuote(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req struct {
		DealID   string    `json:"deal_id" validate:"required,uuid"`
		Currency string    `json:"currency"`
		Items    []lineArg `json:"items" validate:"required,min=1,dive"`
	}
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	dealID := uuid.MustParse(req.DealID)

	clientID, err := s.ref(ctx, ownerID, KindClient, args)
	if err != nil {
		return nil, "", err
	}
	if clientID == uuid.Nil {
		deal, err := s.deals.GetDeal(ctx, ownerID, dealID)
		if err != nil {
			return nil, "", fmt.Errorf("load deal: %w", err)
		}
		clientID = deal.ClientID
	}

	quote, err := s.billing.CreateQuote(ctx, billing.CreateQuoteRequest{
		OwnerID:  ownerID,
		ClientID: clientID,
		DealID:   dealID,
		Currency: req.Currency,
		Items:    lineInputs(req.Items),
	})
	if err != nil {
		return nil, "", err
	}
	msg := fmt.Sprintf("Devis %s créé: %.2f %s TTC.", quote.Number, quote.Total, billing.CurrencySymbol(quote.Currency))
	return asMap(quote), msg, nil
}

func (s *Service) updateQuote(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req struct {
		QuoteID string    `json:"quote_id" validate:"required,uuid"`
		Status  *string   `json:"status"`
		Items   []lineArg `json:"items" validate:"omitempty,min=1,dive"`
	}
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	update := billing.UpdateQuoteRequest{}
	if req.Status != nil {
		status := billing.DocumentStatus(*req.Status)
		update.Status = &status
	}
	if req.Items != nil {
		update.Items = lineInputs(req.Items)
	}
	quote, err := s.billing.UpdateQuote(ctx, ownerID, uuid.MustParse(req.QuoteID), update)
	if err != nil {
		return nil, "", err
	}
	return asMap(quote), fmt.Sprintf("Devis %s mis à jour.", quote.Number), nil
}

func (s *Service) listQuotes(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req pageArgs
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	page, limit, offset := req.window()
	list, total, err := s.billing.ListQuotes(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, "", err
	}
	data := map[string]any{"quotes": list, "count": total, "paging": shared.NewPagination(page, limit, total)}
	return data, fmt.Sprintf("%d devis.", total), nil
}

func (s *Service) createInvoice(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req struct {
		MissionID string    `json:"mission_id" validate:"required,uuid"`
		Currency  string    `json:"currency"`
		DueOn     string    `json:"due_on"`
		Items     []lineArg `json:"items" validate:"required,min=1,dive"`
	}
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	missionID := uuid.MustParse(req.MissionID)

	var dueOn time.Time
	if req.DueOn != "" {
		parsed, err := time.Parse("2006-01-02", req.DueOn)
		if err != nil {
			return nil, "", validationErr("Échéance invalide %q (format attendu AAAA-MM-JJ).", req.DueOn)
		}
		dueOn = parsed
	}

	clientID, err := s.ref(ctx, ownerID, KindClient, args)
	if err != nil {
		return nil, "", err
	}
	if clientID == uuid.Nil {
		mission, err := s.deals.GetMission(ctx, ownerID, missionID)
		if err != nil {
			return nil, "", fmt.Errorf("load mission: %w", err)
		}
		clientID = mission.ClientID
	}

	invoice, err := s.billing.CreateInvoice(ctx, billing.CreateInvoiceRequest{
		OwnerID:   ownerID,
		ClientID:  clientID,
		MissionID: missionID,
		Currency:  req.Currency,
		DueOn:     dueOn,
		Items:     lineInputs(req.Items),
	})
	if err != nil {
		return nil, "", err
	}
	msg := fmt.Sprintf("Facture %s créée: %.2f %s TTC, échéance le %s.",
		invoice.Number, invoice.Total, billing.CurrencySymbol(invoice.Currency), invoice.DueOn.Format("02/01/2006"))
	return asMap(invoice), msg, nil
}

func (s *Service) updateInvoice(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req struct {
		InvoiceID string    `json:"invoice_id" validate:"required,uuid"`
		Status    *string   `json:"status"`
		Items     []lineArg `json:"items" validate:"omitempty,min=1,dive"`
	}
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	update := billing.UpdateInvoiceRequest{}
	if req.Status != nil {
		status := billing.DocumentStatus(*req.Status)
		update.Status = &status
	}
	if req.Items != nil {
		update.Items = lineInputs(req.Items)
	}
	invoice, err := s.billing.UpdateInvoice(ctx, ownerID, uuid.MustParse(req.InvoiceID), update)
	if err != nil {
		return nil, "", err
	}
	return asMap(invoice), fmt.Sprintf("Facture %s mise à jour.", invoice.Number), nil
}

func (s *Service) listInvoices(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req pageArgs
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	page, limit, offset := req.window()
	list, total, err := s.billing.ListInvoices(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, "", err
	}
	data := map[string]any{"invoices": list, "count": total, "paging": shared.NewPagination(page, limit, total)}
	return data, fmt.Sprintf("%d facture(s).", total), nil
}

var documentLabels = map[deals.DocumentKind]string{
	deals.DocProposal:      "Proposition",
	deals.DocBrief:         "Brief",
	deals.DocDeliveryNote:  "Bon de livraison",
	deals.DocReviewRequest: "Demande d'avis",
}

func (s *Service) createDealDocument(kind deals.DocumentKind) handlerFunc {
	return func(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
		var req struct {
			DealID  string `json:"deal_id" validate:"required,uuid"`
			Title   string `json:"title" validate:"required"`
			Content string `json:"content"`
		}
		if err := decodeArgs(s.validate, args, &req); err != nil {
			return nil, "", err
		}
		doc, err := s.deals.CreateDocument(ctx, deals.CreateDocumentRequest{
			OwnerID: ownerID,
			Kind:    kind,
			DealID:  uuid.MustParse(req.DealID),
			Title:   req.Title,
			Content: req.Content,
		})
		if err != nil {
			return nil, "", err
		}
		return asMap(doc), fmt.Sprintf("%s %q créé(e).", documentLabels[kind], doc.Title), nil
	}
}

func (s *Service) createMissionDocument(kind deals.DocumentKind) handlerFunc {
	return func(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
		var req struct {
			MissionID string `json:"mission_id" validate:"required,uuid"`
			Title     string `json:"title"`
			Content   string `json:"content"`
			Recipient string `json:"recipient"`
			Message   string `json:"message"`
		}
		if err := decodeArgs(s.validate, args, &req); err != nil {
			return nil, "", err
		}
		if req.Title == "" {
			if kind != deals.DocReviewRequest {
				return nil, "", validationErr("Le titre du document est obligatoire.")
			}
			req.Title = documentLabels[kind]
		}
		content := req.Content
		if content == "" {
			content = req.Message
		}
		doc, err := s.deals.CreateDocument(ctx, deals.CreateDocumentRequest{
			OwnerID:   ownerID,
			Kind:      kind,
			MissionID: uuid.MustParse(req.MissionID),
			Title:     req.Title,
			Content:   content,
			Recipient: req.Recipient,
		})
		if err != nil {
			return nil, "", err
		}
		return asMap(doc), fmt.Sprintf("%s %q créé(e).", documentLabels[kind], doc.Title), nil
	}
}

func (s *Service) financialSummary(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req struct {
		Query      string `json:"query" validate:"omitempty,oneof=unpaid revenue by_client all"`
		ClientName string `json:"client_name"`
	}
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	query := finance.QueryType(req.Query)
	if query == "" {
		query = finance.QueryAll
	}
	summary, err := s.finance.Summarize(ctx, ownerID, query, req.ClientName)
	if err != nil {
		return nil, "", err
	}

	var msg string
	switch query {
	case finance.QueryUnpaid:
		msg = fmt.Sprintf("Impayés: %.2f %s sur %d facture(s).", summary.Total, summary.Symbol, summary.Count)
	case finance.QueryRevenue:
		msg = fmt.Sprintf("Chiffre d'affaires encaissé: %.2f %s sur %d facture(s).", summary.Total, summary.Symbol, summary.Count)
	default:
		msg = fmt.Sprintf("Total facturé: %.2f %s, dont %.2f %s encaissés et %.2f %s en attente.",
			summary.Total, summary.Symbol, summary.Revenue, summary.Symbol, summary.Unpaid, summary.Symbol)
	}
	return asMap(summary), msg, nil
}

func (s *Service) prepareSendDocument(ctx context.Context, ownerID uuid.UUID, args map[string]any) (map[string]any, string, error) {
	var req struct {
		Type       string `json:"type" validate:"required,oneof=quote invoice"`
		DocumentID string `json:"document_id" validate:"required,uuid"`
		To         string `json:"to" validate:"omitempty,email"`
	}
	if err := decodeArgs(s.validate, args, &req); err != nil {
		return nil, "", err
	}
	id := uuid.MustParse(req.DocumentID)

	var (
		number   string
		clientID uuid.UUID
		label    string
	)
	switch req.Type {
	case billing.DocTypeQuote:
		quote, err := s.billing.GetQuote(ctx, ownerID, id)
		if err != nil {
			return nil, "", err
		}
		number, clientID, label = quote.Number, quote.ClientID, "le devis"
	case billing.DocTypeInvoice:
		invoice, err := s.billing.GetInvoice(ctx, ownerID, id)
		if err != nil {
			return nil, "", err
		}
		number, clientID, label = invoice.Number, invoice.ClientID, "la facture"
	}

	to := req.To
	if to == "" {
		recipient, err := s.crm.BillingRecipient(ctx, ownerID, clientID)
		if err != nil {
			return nil, "", err
		}
		to = recipient
	}
	if to == "" {
		return nil, "", validationErr("Aucune adresse e-mail connue pour ce client. Précisez le destinataire avec to.")
	}

	data := map[string]any{
		"type":   req.Type,
		"id":     id.String(),
		"numero": number,
		"to":     to,
	}
	msg := fmt.Sprintf("Prêt à envoyer %s %s à %s. L'envoi ne partira qu'après votre confirmation.", label, number, to)
	return data, msg, nil
}

// collectUpdates keeps only the whitelisted keys that were actually provided.
func collectUpdates(args map[string]any, keys ...string) map[string]interface{} {
	updates := make(map[string]interface{})
	for _, key := range keys {
		if v, ok := args[key]; ok && v != nil {
			updates[key] = v
		}
	}
	return updates
}
