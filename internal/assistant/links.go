package assistant

// linkRule declares the parent an action cannot run without. The dispatcher
// resolves the parent reference and rejects the call before the handler is
// ever invoked, so a failed rule writes nothing.
type linkRule struct {
	Kind       Kind
	Message    string
	NextAction string
}

var requiredLinks = map[string]linkRule{
	"create_quote": {Kind: KindDeal,
		Message:    "Un deal est obligatoire pour créer un devis. Utilisez list_deals pour retrouver le deal concerné.",
		NextAction: "list_deals"},
	"create_proposal": {Kind: KindDeal,
		Message:    "Un deal est obligatoire pour créer une proposition. Utilisez list_deals pour retrouver le deal concerné.",
		NextAction: "list_deals"},
	"create_brief": {Kind: KindDeal,
		Message:    "Un deal est obligatoire pour créer un brief. Utilisez list_deals pour retrouver le deal concerné.",
		NextAction: "list_deals"},
	"create_invoice": {Kind: KindMission,
		Message:    "Une mission est obligatoire pour créer une facture. Utilisez list_missions pour retrouver la mission concernée.",
		NextAction: "list_missions"},
	"create_delivery_note": {Kind: KindMission,
		Message:    "Une mission est obligatoire pour créer un bon de livraison. Utilisez list_missions pour retrouver la mission concernée.",
		NextAction: "list_missions"},
	"create_review_request": {Kind: KindMission,
		Message:    "Une mission est obligatoire pour créer une demande d'avis. Utilisez list_missions pour retrouver la mission concernée.",
		NextAction: "list_missions"},
}

func missingLinkErr(rule linkRule) *Error {
	return &Error{Kind: KindMissingLink, Message: rule.Message, NextAction: rule.NextAction}
}
