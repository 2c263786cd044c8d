package marketprovider

// cardResponse ответ карточного API Wildberries.
type cardResponse struct {
	Data struct {
		Products []productCard `json:"products"`
	} `json:"data"`
}

type productCard struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	SalePriceU   int     `json:"salePriceU"` // Цена со скидкой в копейках
	ReviewRating float64 `json:"reviewRating"`
	Sizes        []struct {
		Stocks []struct {
			Qty int `json:"qty"`
		} `json:"stocks"`
	} `json:"sizes"`
}

// totalStock суммирует остатки по всем размерам и складам.
func (p productCard) totalStock() int {
	total := 0
	for _, size := range p.Sizes {
		for _, stock := range size.Stocks {
			total += stock.Qty
		}
	}
	return total
}
