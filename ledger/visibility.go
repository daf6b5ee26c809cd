package ledger

// =============================================================================
// VISIBILITY POLICY
// =============================================================================
//
// Administrators see every customer. A store operator sees the customers
// owned by its store plus every VIP customer, since VIP customers shop
// across the whole network.

// CanSeeCustomer reports whether actor may see c.
func CanSeeCustomer(actor Actor, c Customer) bool {
	switch a := actor.(type) {
	case Administrator:
		return true
	case StoreOperator:
		return c.VIP || (c.StoreID != "" && c.StoreID == a.Store)
	default:
		return false
	}
}

// VisibleCustomers filters customers for actor, de-duplicated by id and in
// collection order.
func VisibleCustomers(actor Actor, customers []Customer) []Customer {
	seen := make(map[CustomerID]bool, len(customers))
	out := make([]Customer, 0, len(customers))
	for _, c := range customers {
		if seen[c.ID] || !CanSeeCustomer(actor, c) {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

// VisibleCreditLines returns the lines whose customer is visible to actor.
func VisibleCreditLines(actor Actor, customers []Customer, lines []CreditLine) []CreditLine {
	visible := make(map[CustomerID]bool)
	for _, c := range VisibleCustomers(actor, customers) {
		visible[c.ID] = true
	}
	out := make([]CreditLine, 0, len(lines))
	for _, l := range lines {
		if visible[l.CustomerID] {
			out = append(out, l)
		}
	}
	return out
}

// AttributingStore resolves the store an operation is credited to. Store
// operators always act for their own store; administrators must name one
// (or leave it empty for unattributed activity).
func AttributingStore(actor Actor, requested StoreID) StoreID {
	if op, ok := actor.(StoreOperator); ok {
		return op.Store
	}
	return requested
}
