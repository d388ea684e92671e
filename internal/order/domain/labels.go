package domain

type Label struct {
	Value       string `json:"value"`
	DisplayName string `json:"displayName"`
}

var Statuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

var PaymentMethods = []PaymentMethod{PaymentCash, PaymentTransfer, PaymentCard}

var statusLabels = map[OrderStatus]string{
	StatusPending:   "Pending",
	StatusConfirmed: "Confirmed",
	StatusPreparing: "Preparing",
	StatusShipped:   "Shipped",
	StatusDelivered: "Delivered",
	StatusCancelled: "Cancelled",
}

var paymentLabels = map[PaymentMethod]string{
	PaymentCash:     "Cash",
	PaymentTransfer: "Bank transfer",
	PaymentCard:     "Card",
}

func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s OrderStatus) DisplayName() string { return statusLabels[s] }

func (m PaymentMethod) Valid() bool {
	_, ok := paymentLabels[m]
	return ok
}

func (m PaymentMethod) DisplayName() string { return paymentLabels[m] }

func StatusLabels() []Label {
	out := make([]Label, 0, len(Statuses))
	for _, s := range Statuses {
		out = append(out, Label{Value: string(s), DisplayName: s.DisplayName()})
	}
	return out
}

func PaymentMethodLabels() []Label {
	out := make([]Label, 0, len(PaymentMethods))
	for _, m := range PaymentMethods {
		out = append(out, Label{Value: string(m), DisplayName: m.DisplayName()})
	}
	return out
}
