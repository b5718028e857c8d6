package models

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCanceled},
	OrderConfirmed: {OrderShipped, OrderCanceled, OrderRefunded},
	OrderShipped:   {OrderDelivered, OrderRefunded},
	OrderDelivered: {OrderReturned, OrderRefunded},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderShipped, OrderDelivered,
		OrderCanceled, OrderReturned, OrderRefunded:
		return true
	}
	return false
}

// Terminal : aucune transition ne sort de ces états. Une commande annulée ou
// retournée peut encore voir son paiement remboursé, sans changer de statut.
func (s OrderStatus) Terminal() bool {
	return s == OrderCanceled || s == OrderReturned || s == OrderRefunded
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentSuccess || s == PaymentFailed
}

// dispatchRank ordonne la piste d'expédition, failed est hors piste.
var dispatchRank = map[DispatchStatus]int{
	DispatchNotStarted: 0,
	DispatchPreparing:  1,
	DispatchDispatched: 2,
	DispatchInTransit:  3,
	DispatchDelivered:  4,
}

func (d DispatchStatus) Valid() bool {
	if d == DispatchFailed {
		return true
	}
	_, ok := dispatchRank[d]
	return ok
}

// InFlight : le colis a quitté le vendeur, l'annulation n'est plus possible.
func (d DispatchStatus) InFlight() bool {
	return d == DispatchDispatched || d == DispatchInTransit
}

// RequiresPayment : au-delà de la préparation, le paiement doit être encaissé.
func (d DispatchStatus) RequiresPayment() bool {
	return dispatchRank[d] > dispatchRank[DispatchPreparing]
}

// CanAdvanceTo : la piste n'avance que vers l'avant, failed est possible
// depuis tout état non livré et peut repartir en préparation.
func (d DispatchStatus) CanAdvanceTo(next DispatchStatus) bool {
	if d == DispatchDelivered {
		return false
	}
	if next == DispatchFailed {
		return d != DispatchFailed
	}
	if d == DispatchFailed {
		return next == DispatchPreparing
	}
	cur, ok := dispatchRank[d]
	nxt, ok2 := dispatchRank[next]
	return ok && ok2 && nxt > cur
}
