// FILE: venue_binance.go
// Package main – Venue implementation against Binance USDⓈ-M futures
// (fapi), signed REST only (the engine's own tick cadence stands in for a
// websocket user-data stream).
//
// Grounded on binance_broker.go's HMAC request-signing shape (sign/get/post
// with X-MBX-APIKEY + timestamp + recvWindow + signature) ported from
// net/http onto resty (the HTTP client _examples/0xtitan6-polymarket-mm
// uses for its venue adapter) and rate-limited with golang.org/x/time/rate
// (also from that repo's dependency set), matching the concrete field
// layout in _examples/original_source/src/gridbot/broker/binance_connector.py
// (exchangeInfo filter names, order status strings, position amt sign).

package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	binanceLiveBase    = "https://fapi.binance.com"
	binanceTestnetBase = "https://testnet.binancefuture.com"

	// Binance error codes this venue retries on, per SPEC_FULL §4.3/§7.
	binanceErrTimestamp    = -1021 // clock skew
	binanceErrPrecision    = -1111 // price/qty precision rejected
	binanceErrPositionMode = -4061 // position-side mismatch

	backoffBase     = 500 * time.Millisecond
	backoffCap      = 8 * time.Second
	maxRequestTries = 5
)

// binanceErrBody is Binance's standard {code, msg} error envelope.
type binanceErrBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// BinanceVenue talks to Binance USDⓈ-M futures over signed REST.
type BinanceVenue struct {
	client     *resty.Client
	apiKey     string
	apiSecret  string
	recvWindow int64
	limiter    *rate.Limiter
}

func NewBinanceVenue(apiKey, apiSecret string, testnet bool) *BinanceVenue {
	base := binanceLiveBase
	if testnet {
		base = binanceTestnetBase
	}
	return &BinanceVenue{
		client:     resty.New().SetBaseURL(base).SetTimeout(5 * time.Second),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		recvWindow: 5000,
		// Binance's futures REST weight budget is generous per-IP; 10 req/s
		// keeps a single-symbol grid engine comfortably under it.
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}
}

func (b *BinanceVenue) Name() string { return "binance-futures" }

func (b *BinanceVenue) sign(q url.Values) string {
	mac := hmac.New(sha256.New, []byte(b.apiSecret))
	mac.Write([]byte(q.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

func (b *BinanceVenue) signedParams() url.Values {
	q := url.Values{}
	q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	q.Set("recvWindow", strconv.FormatInt(b.recvWindow, 10))
	return q
}

// request sends one Binance REST call, retrying with capped exponential
// backoff on clock-skew, rate-limit, precision, and position-mode errors
// (SPEC_FULL §4.3/§7). Precision and position-mode corrections are each
// applied and retried at most once; clock-skew and rate-limiting retry
// across the full attempt budget since a fresh timestamp or a cooldown is
// all they need.
func (b *BinanceVenue) request(ctx context.Context, method, path string, q url.Values, signed bool) ([]byte, error) {
	precisionRetried := false
	positionModeRetried := false
	backoff := backoffBase
	var lastErr error

	for attempt := 0; attempt < maxRequestTries; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		attemptQ := cloneValues(q)
		if signed {
			attemptQ.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
			attemptQ.Set("recvWindow", strconv.FormatInt(b.recvWindow, 10))
			attemptQ.Set("signature", b.sign(attemptQ))
		}

		req := b.client.R().SetContext(ctx).SetHeader("X-MBX-APIKEY", b.apiKey)
		var resp *resty.Response
		var err error
		switch method {
		case "GET":
			resp, err = req.SetQueryParamsFromValues(attemptQ).Get(path)
		case "POST":
			resp, err = req.SetQueryParamsFromValues(attemptQ).Post(path)
		case "DELETE":
			resp, err = req.SetQueryParamsFromValues(attemptQ).Delete(path)
		default:
			return nil, fmt.Errorf("unsupported method %s", method)
		}
		if err != nil {
			lastErr = err
			sleepBackoff(ctx, backoff)
			backoff = nextBackoff(backoff)
			continue
		}
		if !resp.IsError() {
			return resp.Body(), nil
		}

		lastErr = fmt.Errorf("binance %s %s: %d %s", method, path, resp.StatusCode(), string(resp.Body()))
		var body binanceErrBody
		_ = json.Unmarshal(resp.Body(), &body)

		switch {
		case resp.StatusCode() == 429:
			wait := backoff
			if ra := resp.Header().Get("Retry-After"); ra != "" {
				if secs, perr := strconv.Atoi(ra); perr == nil {
					wait = time.Duration(secs) * time.Second
				}
			}
			sleepBackoff(ctx, wait)
			backoff = nextBackoff(backoff)
			continue

		case body.Code == binanceErrTimestamp:
			// each attempt stamps a fresh local timestamp before signing, so
			// the retry simply re-sends with the current local clock.
			sleepBackoff(ctx, backoff)
			backoff = nextBackoff(backoff)
			continue

		case body.Code == binanceErrPrecision && signed && !precisionRetried:
			precisionRetried = true
			requantizePriceQty(q)
			sleepBackoff(ctx, backoff)
			backoff = nextBackoff(backoff)
			continue

		case body.Code == binanceErrPositionMode && signed && !positionModeRetried:
			positionModeRetried = true
			q.Set("positionSide", "BOTH")
			sleepBackoff(ctx, backoff)
			backoff = nextBackoff(backoff)
			continue

		default:
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > backoffCap {
		return backoffCap
	}
	return d
}

func sleepBackoff(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// requantizePriceQty drops one decimal place of precision from price/quantity
// params in place, for a single retry after Binance rejects a -1111 (LOT_SIZE
// / PRICE_FILTER precision) error.
func requantizePriceQty(q url.Values) {
	for _, field := range []string{"price", "quantity"} {
		raw := q.Get(field)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		places := d.Exponent()
		if places >= 0 {
			continue
		}
		q.Set(field, d.Round(-places-1).String())
	}
}

func (b *BinanceVenue) BookTicker(ctx context.Context, symbol string) (bid, ask decimal.Decimal, err error) {
	q := url.Values{"symbol": {symbol}}
	body, err := b.request(ctx, "GET", "/fapi/v1/ticker/bookTicker", q, false)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	var out struct {
		BidPrice string `json:"bidPrice"`
		AskPrice string `json:"askPrice"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	bid, err = decimal.NewFromString(out.BidPrice)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	ask, err = decimal.NewFromString(out.AskPrice)
	return bid, ask, err
}

func (b *BinanceVenue) ExchangeInfo(ctx context.Context, symbol string) (Filters, error) {
	body, err := b.request(ctx, "GET", "/fapi/v1/exchangeInfo", url.Values{}, false)
	if err != nil {
		return Filters{}, err
	}
	var out struct {
		Symbols []struct {
			Symbol         string            `json:"symbol"`
			Filters        []json.RawMessage `json:"filters"`
			QtyPrecision   int               `json:"quantityPrecision"`
			PricePrecision int               `json:"pricePrecision"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return Filters{}, err
	}
	for _, s := range out.Symbols {
		if s.Symbol != symbol {
			continue
		}
		f := Filters{PricePrecision: s.PricePrecision, QtyPrecision: s.QtyPrecision}
		for _, raw := range s.Filters {
			var head struct {
				FilterType string `json:"filterType"`
			}
			if err := json.Unmarshal(raw, &head); err != nil {
				continue
			}
			switch head.FilterType {
			case "PRICE_FILTER":
				var pf struct {
					TickSize string `json:"tickSize"`
				}
				json.Unmarshal(raw, &pf)
				f.TickSize, _ = decimal.NewFromString(pf.TickSize)
			case "LOT_SIZE":
				var lf struct {
					StepSize string `json:"stepSize"`
					MinQty   string `json:"minQty"`
				}
				json.Unmarshal(raw, &lf)
				f.StepSize, _ = decimal.NewFromString(lf.StepSize)
				f.MinQty, _ = decimal.NewFromString(lf.MinQty)
			case "MIN_NOTIONAL":
				var mn struct {
					Notional string `json:"notional"`
				}
				json.Unmarshal(raw, &mn)
				f.MinNotional, _ = decimal.NewFromString(mn.Notional)
			}
		}
		return f, nil
	}
	return Filters{}, fmt.Errorf("symbol %s not found in exchange info", symbol)
}

func (b *BinanceVenue) OpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	q := b.signedParams()
	q.Set("symbol", symbol)
	body, err := b.request(ctx, "GET", "/fapi/v1/openOrders", q, true)
	if err != nil {
		return nil, err
	}
	var raw []binanceOrder
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(raw))
	for _, o := range raw {
		out = append(out, o.toOrder())
	}
	return out, nil
}

func (b *BinanceVenue) QueryOrder(ctx context.Context, symbol, orderID string) (Order, error) {
	q := b.signedParams()
	q.Set("symbol", symbol)
	q.Set("orderId", orderID)
	body, err := b.request(ctx, "GET", "/fapi/v1/order", q, true)
	if err != nil {
		if strings.Contains(err.Error(), "Order does not exist") {
			return Order{OrderID: orderID, Status: StatusNotFound}, nil
		}
		return Order{}, err
	}
	var raw binanceOrder
	if err := json.Unmarshal(body, &raw); err != nil {
		return Order{}, err
	}
	return raw.toOrder(), nil
}

func (b *BinanceVenue) PlaceLimit(ctx context.Context, symbol string, side OrderSide, price, qty decimal.Decimal, reduceOnly bool, clientOrderID string) (Order, error) {
	q := b.signedParams()
	q.Set("symbol", symbol)
	q.Set("side", string(side))
	q.Set("type", "LIMIT")
	q.Set("timeInForce", "GTC")
	q.Set("price", price.String())
	q.Set("quantity", qty.String())
	q.Set("newClientOrderId", clientOrderID)
	if reduceOnly {
		q.Set("reduceOnly", "true")
	}
	body, err := b.request(ctx, "POST", "/fapi/v1/order", q, true)
	if err != nil {
		return Order{}, err
	}
	var raw binanceOrder
	if err := json.Unmarshal(body, &raw); err != nil {
		return Order{}, err
	}
	return raw.toOrder(), nil
}

func (b *BinanceVenue) CancelOrder(ctx context.Context, symbol, orderID string) (ok bool, err error) {
	q := b.signedParams()
	q.Set("symbol", symbol)
	q.Set("orderId", orderID)
	_, err = b.request(ctx, "DELETE", "/fapi/v1/order", q, true)
	if err != nil {
		if strings.Contains(err.Error(), "Unknown order sent") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *BinanceVenue) Positions(ctx context.Context, symbol string) (Positions, error) {
	q := b.signedParams()
	q.Set("symbol", symbol)
	body, err := b.request(ctx, "GET", "/fapi/v2/positionRisk", q, true)
	if err != nil {
		return Positions{}, err
	}
	var raw []struct {
		PositionAmt string `json:"positionAmt"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Positions{}, err
	}
	pos := Positions{}
	for _, r := range raw {
		amt, err := decimal.NewFromString(r.PositionAmt)
		if err != nil {
			continue
		}
		if amt.IsPositive() {
			pos.LongQty = pos.LongQty.Add(amt)
		} else if amt.IsNegative() {
			pos.ShortQty = pos.ShortQty.Add(amt.Abs())
		}
	}
	return pos, nil
}

func (b *BinanceVenue) CommissionRate(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := b.signedParams()
	q.Set("symbol", symbol)
	body, err := b.request(ctx, "GET", "/fapi/v1/commissionRate", q, true)
	if err != nil {
		return decimal.Zero, err
	}
	var out struct {
		TakerCommissionRate string `json:"takerCommissionRate"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(out.TakerCommissionRate)
}

func (b *BinanceVenue) Time(ctx context.Context) (time.Time, error) {
	body, err := b.request(ctx, "GET", "/fapi/v1/time", url.Values{}, false)
	if err != nil {
		return time.Time{}, err
	}
	var out struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(out.ServerTime), nil
}

type binanceOrder struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Side          string `json:"side"`
	Status        string `json:"status"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	ReduceOnly    bool   `json:"reduceOnly"`
}

func (o binanceOrder) toOrder() Order {
	price, _ := decimal.NewFromString(o.Price)
	origQty, _ := decimal.NewFromString(o.OrigQty)
	execQty, _ := decimal.NewFromString(o.ExecutedQty)
	return Order{
		OrderID:       strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Side:          OrderSide(o.Side),
		Status:        mapBinanceStatus(o.Status),
		Price:         price,
		OrigQty:       origQty,
		ExecutedQty:   execQty,
		ReduceOnly:    o.ReduceOnly,
	}
}

func mapBinanceStatus(s string) OrderStatus {
	switch s {
	case "NEW":
		return StatusNew
	case "PARTIALLY_FILLED":
		return StatusPartiallyFilled
	case "FILLED":
		return StatusFilled
	case "CANCELED":
		return StatusCanceled
	case "EXPIRED":
		return StatusExpired
	case "REJECTED":
		return StatusRejected
	default:
		return StatusUnknown
	}
}
