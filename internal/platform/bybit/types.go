package bybit

// response is the envelope every Bybit v5 endpoint returns. RetCode zero
// means success; anything else carries a human-readable RetMsg.
type response struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
}

// envelope lets the transport layer reach the envelope of any embedding
// response type.
func (r response) envelope() response { return r }

// retCodeLeverageNotModified is returned when set-leverage asks for the
// leverage the position already has. Bybit reports it as an error; it is not
// one for our purposes.
const retCodeLeverageNotModified = 110043

type walletBalanceResponse struct {
	response
	Result struct {
		List []struct {
			TotalAvailableBalance string `json:"totalAvailableBalance"`
			Coin                  []struct {
				Coin                string `json:"coin"`
				WalletBalance       string `json:"walletBalance"`
				AvailableToWithdraw string `json:"availableToWithdraw"`
			} `json:"coin"`
		} `json:"list"`
	} `json:"result"`
}

type tickersResponse struct {
	response
	Result struct {
		Category string `json:"category"`
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
		} `json:"list"`
	} `json:"result"`
}

type createOrderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price,omitempty"`
	TimeInForce string `json:"timeInForce"`
	OrderLinkID string `json:"orderLinkId,omitempty"`
}

type createOrderResponse struct {
	response
	Result struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	} `json:"result"`
}

type cancelOrderRequest struct {
	Category string `json:"category"`
	Symbol   string `json:"symbol"`
	OrderID  string `json:"orderId"`
}

type cancelOrderResponse struct {
	response
	Result struct {
		OrderID string `json:"orderId"`
	} `json:"result"`
}

type orderListResponse struct {
	response
	Result struct {
		List []struct {
			OrderID     string `json:"orderId"`
			OrderStatus string `json:"orderStatus"`
			AvgPrice    string `json:"avgPrice"`
			CumExecQty  string `json:"cumExecQty"`
		} `json:"list"`
	} `json:"result"`
}

type setLeverageRequest struct {
	Category     string `json:"category"`
	Symbol       string `json:"symbol"`
	BuyLeverage  string `json:"buyLeverage"`
	SellLeverage string `json:"sellLeverage"`
}

type positionListResponse struct {
	response
	Result struct {
		List []struct {
			Symbol string `json:"symbol"`
			Side   string `json:"side"`
			Size   string `json:"size"`
		} `json:"list"`
	} `json:"result"`
}
