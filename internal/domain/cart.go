package domain

// Cart is the session-scoped cart snapshot read once at checkout.
// It is owned by the session store and treated as a value by the
// checkout orchestrator; prices are frozen at add-to-cart time.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

type CartLine struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	PricePaise int64  `json:"pricePaise"`
	Quantity   int    `json:"quantity"`
}

// Subtotal sums line price x quantity in paise.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.PricePaise * int64(l.Quantity)
	}
	return total
}

// Empty reports whether the cart has no lines with positive quantity.
func (c Cart) Empty() bool {
	for _, l := range c.Lines {
		if l.Quantity > 0 {
			return false
		}
	}
	return true
}
