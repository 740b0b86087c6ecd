// Package advisor defines the metered advisor features: their input,
// the prompt sent upstream and the payload stored in history.
package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"advisorgate/internal/db"
	"advisorgate/internal/provider"
	"advisorgate/internal/usage"
)

// Input is a validated feature request.
type Input interface {
	// Tier is the credit tier the request is charged to.
	Tier() usage.Tier

	// Request builds the upstream completion request.
	Request(userID string) provider.Request

	// Payload is the history record body for a completed request.
	Payload(result json.RawMessage) db.Payload

	normalize()
}

// Feature is one metered endpoint.
type Feature struct {
	Name db.PayloadType
	Path string

	newInput func() Input
}

var (
	WebsiteAnalysis = Feature{
		Name:     db.PayloadWebsiteAnalysis,
		Path:     "/v1/advisor/website-analysis",
		newInput: func() Input { return &WebsiteAnalysisInput{} },
	}
	MarketResearch = Feature{
		Name:     db.PayloadMarketResearch,
		Path:     "/v1/advisor/market-research",
		newInput: func() Input { return &MarketResearchInput{} },
	}
	StockCommentary = Feature{
		Name:     db.PayloadStockCommentary,
		Path:     "/v1/advisor/stock-commentary",
		newInput: func() Input { return &StockCommentaryInput{} },
	}
)

// Features lists every metered feature.
func Features() []Feature {
	return []Feature{WebsiteAnalysis, MarketResearch, StockCommentary}
}

func modeTier(mode string) usage.Tier {
	if mode == string(usage.TierDeep) {
		return usage.TierDeep
	}
	return usage.TierStandard
}

func maxTokens(t usage.Tier) int {
	if t == usage.TierDeep {
		return 4000
	}
	return 1500
}

type WebsiteAnalysisInput struct {
	WebsiteURL   string `json:"websiteUrl" validate:"required,url,max=2048"`
	WebsiteGoals string `json:"websiteGoals" validate:"max=1000"`
	AnalysisMode string `json:"analysisMode" validate:"omitempty,oneof=standard deep"`
}

func (in *WebsiteAnalysisInput) normalize() {
	in.WebsiteURL = strings.TrimSpace(in.WebsiteURL)
	in.WebsiteGoals = strings.TrimSpace(in.WebsiteGoals)
}

func (in *WebsiteAnalysisInput) Tier() usage.Tier { return modeTier(in.AnalysisMode) }

func (in *WebsiteAnalysisInput) Request(userID string) provider.Request {
	tier := in.Tier()
	var b strings.Builder
	fmt.Fprintf(&b, "Website: %s\n", in.WebsiteURL)
	if in.WebsiteGoals != "" {
		fmt.Fprintf(&b, "Owner's goals: %s\n", in.WebsiteGoals)
	}
	if tier == usage.TierDeep {
		b.WriteString("Give a thorough review covering content, conversion paths, SEO and performance.")
	} else {
		b.WriteString("Give a concise review with the most important fixes first.")
	}
	return provider.Request{
		System:    "You are a website conversion and UX advisor. Answer only through the report_website tool.",
		Messages:  []provider.Message{{Role: "user", Content: b.String()}},
		Tool:      &provider.Tool{Name: "report_website", Description: "Structured website review", Parameters: websiteSchema},
		MaxTokens: maxTokens(tier),
		User:      userID,
	}
}

func (in *WebsiteAnalysisInput) Payload(result json.RawMessage) db.Payload {
	return db.Payload{
		Type: db.PayloadWebsiteAnalysis,
		Website: &db.WebsiteAnalysis{
			WebsiteURL:   in.WebsiteURL,
			WebsiteGoals: in.WebsiteGoals,
			AnalysisMode: string(in.Tier()),
			Result:       result,
		},
	}
}

type MarketResearchInput struct {
	Industry       string `json:"industry" validate:"required,max=200"`
	TargetAudience string `json:"targetAudience" validate:"max=500"`
	Region         string `json:"region" validate:"max=100"`
	AnalysisMode   string `json:"analysisMode" validate:"omitempty,oneof=standard deep"`
}

func (in *MarketResearchInput) normalize() {
	in.Industry = strings.TrimSpace(in.Industry)
	in.TargetAudience = strings.TrimSpace(in.TargetAudience)
	in.Region = strings.TrimSpace(in.Region)
}

func (in *MarketResearchInput) Tier() usage.Tier { return modeTier(in.AnalysisMode) }

func (in *MarketResearchInput) Request(userID string) provider.Request {
	tier := in.Tier()
	var b strings.Builder
	fmt.Fprintf(&b, "Industry: %s\n", in.Industry)
	if in.TargetAudience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", in.TargetAudience)
	}
	if in.Region != "" {
		fmt.Fprintf(&b, "Region: %s\n", in.Region)
	}
	if tier == usage.TierDeep {
		b.WriteString("Include market sizing, named competitors and a go-to-market plan.")
	} else {
		b.WriteString("Summarize the market and the main opportunities.")
	}
	return provider.Request{
		System:    "You are a market research analyst for small businesses. Answer only through the report_market tool.",
		Messages:  []provider.Message{{Role: "user", Content: b.String()}},
		Tool:      &provider.Tool{Name: "report_market", Description: "Structured market research", Parameters: marketSchema},
		MaxTokens: maxTokens(tier),
		User:      userID,
	}
}

func (in *MarketResearchInput) Payload(result json.RawMessage) db.Payload {
	return db.Payload{
		Type: db.PayloadMarketResearch,
		Market: &db.MarketResearch{
			Industry:       in.Industry,
			TargetAudience: in.TargetAudience,
			Region:         in.Region,
			AnalysisMode:   string(in.Tier()),
			Result:         result,
		},
	}
}

type StockCommentaryInput struct {
	Ticker   string `json:"ticker" validate:"required,alphanum,max=10"`
	Question string `json:"question" validate:"max=500"`
}

func (in *StockCommentaryInput) normalize() {
	in.Ticker = strings.ToUpper(strings.TrimSpace(in.Ticker))
	in.Question = strings.TrimSpace(in.Question)
}

// Tier is always tools: commentary is charged to the tool quota.
func (in *StockCommentaryInput) Tier() usage.Tier { return usage.TierTools }

func (in *StockCommentaryInput) Request(userID string) provider.Request {
	content := "Ticker: " + in.Ticker
	if in.Question != "" {
		content += "\nQuestion: " + in.Question
	}
	return provider.Request{
		System:    "You write short, balanced stock commentary. You never give personalised financial advice. Answer only through the report_stock tool.",
		Messages:  []provider.Message{{Role: "user", Content: content}},
		Tool:      &provider.Tool{Name: "report_stock", Description: "Structured stock commentary", Parameters: stockSchema},
		MaxTokens: 800,
		User:      userID,
	}
}

func (in *StockCommentaryInput) Payload(result json.RawMessage) db.Payload {
	return db.Payload{
		Type: db.PayloadStockCommentary,
		Stock: &db.StockCommentary{
			Ticker:   in.Ticker,
			Question: in.Question,
			Result:   result,
		},
	}
}
