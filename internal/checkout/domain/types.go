package domain

type Money struct {
	Currency string
	Amount   int64
}

type QuoteLine struct {
	ProductID string
	Name      string
	Quantity  int64
	UnitPrice Money
	LineTotal Money
}

type Quote struct {
	Lines []QuoteLine
	Total Money
}

// OrderMessage is the human-readable handoff composed at checkout: the text
// summary plus the prefilled messaging link it is delivered through.
type OrderMessage struct {
	Text        string
	WhatsAppURL string
}
