package assistant

// CatalogVersion identifies the action set exposed to the planner. Bump it
// whenever an action or parameter changes shape.
const CatalogVersion = "v1"

// Param describes one typed argument of an action, in a JSON-Schema-like
// shape the planner consumes.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Action is one entry of the closed catalog. Mutating actions emit an audit
// entry on success; EntityType labels that entry.
type Action struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"parameters"`
	Mutating    bool    `json:"-"`
	EntityType  string  `json:"-"`
}

func refParams(entity, article string) []Param {
	return []Param{
		{Name: entity + "_id", Type: "string", Description: "Identifiant " + article, Required: false},
		{Name: entity + "_name", Type: "string", Description: "Nom " + article + " (recherche approximative)", Required: false},
	}
}

var itemsParam = Param{Name: "items", Type: "array",
	Description: "Lignes {description, quantite, prix_unitaire, taux_tva?}", Required: true}

// Catalog returns the closed, versioned action set. The dispatcher's handler
// map is built from the same list; an unrecognized name is answered with an
// unknown_tool envelope, never silently ignored.
func Catalog() []Action {
	return []Action{
		{Name: "create_client", Description: "Créer un client (particulier ou société).", Mutating: true, EntityType: "client", Params: []Param{
			{Name: "name", Type: "string", Required: true},
			{Name: "kind", Type: "string", Description: "individual ou organization"},
			{Name: "email", Type: "string"},
			{Name: "phone", Type: "string"},
			{Name: "address", Type: "string"},
			{Name: "custom_fields", Type: "object"},
		}},
		{Name: "update_client", Description: "Modifier un client existant.", Mutating: true, EntityType: "client", Params: append(refParams("client", "du client"),
			Param{Name: "name", Type: "string"},
			Param{Name: "email", Type: "string"},
			Param{Name: "phone", Type: "string"},
			Param{Name: "address", Type: "string"},
			Param{Name: "custom_fields", Type: "object"},
		)},
		{Name: "list_clients", Description: "Lister les clients.", Params: pageParams()},
		{Name: "create_contact", Description: "Créer un contact indépendant.", Mutating: true, EntityType: "contact", Params: []Param{
			{Name: "first_name", Type: "string"},
			{Name: "last_name", Type: "string"},
			{Name: "email", Type: "string"},
			{Name: "phone", Type: "string"},
		}},
		{Name: "list_contacts", Description: "Lister les contacts.", Params: pageParams()},
		{Name: "link_contact", Description: "Rattacher un contact à un client avec ses rôles.", Mutating: true, EntityType: "contact", Params: append(append(refParams("client", "du client"), refParams("contact", "du contact")...),
			Param{Name: "handles_billing", Type: "boolean"},
			Param{Name: "handles_ops", Type: "boolean"},
			Param{Name: "handles_management", Type: "boolean"},
			Param{Name: "is_primary", Type: "boolean"},
			Param{Name: "preferred_channel", Type: "string"},
		)},
		{Name: "create_deal", Description: "Créer un deal (opportunité).", Mutating: true, EntityType: "deal", Params: append(refParams("client", "du client"),
			Param{Name: "title", Type: "string", Required: true},
			Param{Name: "amount", Type: "number"},
			Param{Name: "currency", Type: "string"},
			Param{Name: "notes", Type: "string"},
		)},
		{Name: "update_deal", Description: "Modifier un deal (titre, statut open/won/lost, montant).", Mutating: true, EntityType: "deal", Params: append(refParams("deal", "du deal"),
			Param{Name: "title", Type: "string"},
			Param{Name: "status", Type: "string"},
			Param{Name: "amount", Type: "number"},
			Param{Name: "notes", Type: "string"},
		)},
		{Name: "list_deals", Description: "Lister les deals.", Params: pageParams()},
		{Name: "create_mission", Description: "Créer une mission depuis un deal gagné.", Mutating: true, EntityType: "mission", Params: append(refParams("deal", "du deal"),
			Param{Name: "title", Type: "string"},
			Param{Name: "total_amount", Type: "number"},
		)},
		{Name: "update_mission", Description: "Modifier une mission (titre, statut, montant total).", Mutating: true, EntityType: "mission", Params: append(refParams("mission", "de la mission"),
			Param{Name: "title", Type: "string"},
			Param{Name: "status", Type: "string"},
			Param{Name: "total_amount", Type: "number"},
		)},
		{Name: "list_missions", Description: "Lister les missions avec leur reste à facturer.", Params: pageParams()},
		{Name: "create_quote", Description: "Créer un devis rattaché à un deal.", Mutating: true, EntityType: "quote", Params: append(append(refParams("deal", "du deal"), refParams("client", "du client")...),
			itemsParam,
			Param{Name: "currency", Type: "string"},
		)},
		{Name: "update_quote", Description: "Modifier un devis (statut, lignes).", Mutating: true, EntityType: "quote", Params: []Param{
			{Name: "quote_id", Type: "string", Required: true},
			{Name: "status", Type: "string"},
			itemsParam,
		}},
		{Name: "list_quotes", Description: "Lister les devis.", Params: pageParams()},
		{Name: "create_invoice", Description: "Créer une facture rattachée à une mission.", Mutating: true, EntityType: "invoice", Params: append(append(refParams("mission", "de la mission"), refParams("client", "du client")...),
			itemsParam,
			Param{Name: "currency", Type: "string"},
			Param{Name: "due_on", Type: "string", Description: "Échéance AAAA-MM-JJ"},
		)},
		{Name: "update_invoice", Description: "Modifier une facture (statut draft/sent/paid/cancelled, lignes).", Mutating: true, EntityType: "invoice", Params: []Param{
			{Name: "invoice_id", Type: "string", Required: true},
			{Name: "status", Type: "string"},
			itemsParam,
		}},
		{Name: "list_invoices", Description: "Lister les factures.", Params: pageParams()},
		{Name: "create_proposal", Description: "Créer une proposition rattachée à un deal.", Mutating: true, EntityType: "proposal", Params: append(refParams("deal", "du deal"),
			Param{Name: "title", Type: "string", Required: true},
			Param{Name: "content", Type: "string"},
		)},
		{Name: "create_brief", Description: "Créer un brief rattaché à un deal.", Mutating: true, EntityType: "brief", Params: append(refParams("deal", "du deal"),
			Param{Name: "title", Type: "string", Required: true},
			Param{Name: "content", Type: "string"},
		)},
		{Name: "create_delivery_note", Description: "Créer un bon de livraison rattaché à une mission.", Mutating: true, EntityType: "delivery_note", Params: append(refParams("mission", "de la mission"),
			Param{Name: "title", Type: "string", Required: true},
			Param{Name: "content", Type: "string"},
		)},
		{Name: "create_review_request", Description: "Créer une demande d'avis rattachée à une mission.", Mutating: true, EntityType: "review_request", Params: append(refParams("mission", "de la mission"),
			Param{Name: "title", Type: "string"},
			Param{Name: "recipient", Type: "string"},
			Param{Name: "message", Type: "string"},
		)},
		{Name: "get_financial_summary", Description: "Synthèse financière: unpaid, revenue, by_client ou all.", Params: []Param{
			{Name: "query", Type: "string", Description: "unpaid | revenue | by_client | all"},
			{Name: "client_name", Type: "string"},
		}},
		{Name: "prepare_send_document", Description: "Préparer l'envoi d'un devis ou d'une facture (l'envoi réel attend la confirmation de l'utilisateur).", Params: []Param{
			{Name: "type", Type: "string", Description: "quote ou invoice", Required: true},
			{Name: "document_id", Type: "string", Required: true},
			{Name: "to", Type: "string"},
		}},
	}
}

func pageParams() []Param {
	return []Param{
		{Name: "page", Type: "number"},
		{Name: "per_page", Type: "number"},
	}
}
