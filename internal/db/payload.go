package db

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PayloadType discriminates the Payload union.
type PayloadType string

const (
	PayloadWebsiteAnalysis PayloadType = "website_analysis"
	PayloadMarketResearch  PayloadType = "market_research"
	PayloadStockCommentary PayloadType = "stock_commentary"
)

var (
	ErrUntypedPayload = errors.New("payload has no type")
	ErrInvalidPayload = errors.New("payload is invalid")
)

// Payload is the feature-specific body of an AnalysisRecord. Exactly one of
// Website, Market or Stock is set for the known types. A type this build
// does not know is kept verbatim in Raw so it survives a read/write cycle.
type Payload struct {
	Type PayloadType

	Website *WebsiteAnalysis
	Market  *MarketResearch
	Stock   *StockCommentary

	Raw json.RawMessage
}

type WebsiteAnalysis struct {
	WebsiteURL   string          `json:"websiteUrl"`
	WebsiteGoals string          `json:"websiteGoals,omitempty"`
	AnalysisMode string          `json:"analysisMode"`
	Result       json.RawMessage `json:"result"`
}

type MarketResearch struct {
	Industry       string          `json:"industry"`
	TargetAudience string          `json:"targetAudience,omitempty"`
	Region         string          `json:"region,omitempty"`
	AnalysisMode   string          `json:"analysisMode"`
	Result         json.RawMessage `json:"result"`
}

type StockCommentary struct {
	Ticker   string          `json:"ticker"`
	Question string          `json:"question,omitempty"`
	Result   json.RawMessage `json:"result"`
}

// Known reports whether p is one of the variants this build understands.
func (p Payload) Known() bool {
	switch p.Type {
	case PayloadWebsiteAnalysis, PayloadMarketResearch, PayloadStockCommentary:
		return true
	}
	return false
}

// Result returns the provider output stored with a known variant.
func (p Payload) Result() json.RawMessage {
	switch {
	case p.Website != nil:
		return p.Website.Result
	case p.Market != nil:
		return p.Market.Result
	case p.Stock != nil:
		return p.Stock.Result
	}
	return nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PayloadWebsiteAnalysis:
		if p.Website == nil {
			return nil, fmt.Errorf("%w: %s without body", ErrInvalidPayload, p.Type)
		}
		return json.Marshal(struct {
			Type PayloadType `json:"type"`
			*WebsiteAnalysis
		}{p.Type, p.Website})
	case PayloadMarketResearch:
		if p.Market == nil {
			return nil, fmt.Errorf("%w: %s without body", ErrInvalidPayload, p.Type)
		}
		return json.Marshal(struct {
			Type PayloadType `json:"type"`
			*MarketResearch
		}{p.Type, p.Market})
	case PayloadStockCommentary:
		if p.Stock == nil {
			return nil, fmt.Errorf("%w: %s without body", ErrInvalidPayload, p.Type)
		}
		return json.Marshal(struct {
			Type PayloadType `json:"type"`
			*StockCommentary
		}{p.Type, p.Stock})
	case "":
		return nil, ErrUntypedPayload
	}
	if len(p.Raw) == 0 {
		return nil, fmt.Errorf("%w: unknown type %q without raw body", ErrInvalidPayload, p.Type)
	}
	return p.Raw, nil
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var head struct {
		Type PayloadType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	out := Payload{Type: head.Type}
	switch head.Type {
	case "":
		return ErrUntypedPayload
	case PayloadWebsiteAnalysis:
		out.Website = &WebsiteAnalysis{}
		if err := json.Unmarshal(data, out.Website); err != nil {
			return err
		}
		if out.Website.WebsiteURL == "" {
			return fmt.Errorf("%w: website_analysis missing websiteUrl", ErrInvalidPayload)
		}
	case PayloadMarketResearch:
		out.Market = &MarketResearch{}
		if err := json.Unmarshal(data, out.Market); err != nil {
			return err
		}
		if out.Market.Industry == "" {
			return fmt.Errorf("%w: market_research missing industry", ErrInvalidPayload)
		}
	case PayloadStockCommentary:
		out.Stock = &StockCommentary{}
		if err := json.Unmarshal(data, out.Stock); err != nil {
			return err
		}
		if out.Stock.Ticker == "" {
			return fmt.Errorf("%w: stock_commentary missing ticker", ErrInvalidPayload)
		}
	default:
		out.Raw = append(json.RawMessage(nil), data...)
	}
	*p = out
	return nil
}
