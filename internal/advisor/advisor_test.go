package advisor

import (
	"encoding/json"
	"strings"
	"testing"

	"advisorgate/internal/db"
	"advisorgate/internal/usage"
)

func TestDecodeWebsiteAnalysis(t *testing.T) {
	v := NewValidator()

	in, errs := v.Decode(WebsiteAnalysis, []byte(`{"websiteUrl":" https://example.com ","analysisMode":"deep"}`))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if in.Tier() != usage.TierDeep {
		t.Fatalf("Tier = %s, want deep", in.Tier())
	}
	req := in.Request("user-1")
	if req.Tool == nil || req.Tool.Name != "report_website" || req.User != "user-1" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !strings.Contains(req.Messages[0].Content, "https://example.com\n") {
		t.Fatalf("url not trimmed into prompt: %q", req.Messages[0].Content)
	}

	p := in.Payload(json.RawMessage(`{"summary":"ok"}`))
	if p.Type != db.PayloadWebsiteAnalysis || p.Website.AnalysisMode != "deep" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestDecodeDefaultsToStandard(t *testing.T) {
	in, errs := NewValidator().Decode(MarketResearch, []byte(`{"industry":"coffee"}`))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if in.Tier() != usage.TierStandard {
		t.Fatalf("Tier = %s, want standard", in.Tier())
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name    string
		feature Feature
		body    string
		field   string
	}{
		{"goals too long", WebsiteAnalysis, `{"websiteUrl":"https://example.com","websiteGoals":"` + strings.Repeat("g", 1001) + `"}`, "websiteGoals"},
		{"missing url", WebsiteAnalysis, `{}`, "websiteUrl"},
		{"not a url", WebsiteAnalysis, `{"websiteUrl":"example"}`, "websiteUrl"},
		{"bad mode", WebsiteAnalysis, `{"websiteUrl":"https://example.com","analysisMode":"turbo"}`, "analysisMode"},
		{"missing industry", MarketResearch, `{"region":"EU"}`, "industry"},
		{"region too long", MarketResearch, `{"industry":"x","region":"` + strings.Repeat("r", 101) + `"}`, "region"},
		{"ticker symbols", StockCommentary, `{"ticker":"AB-C"}`, "ticker"},
		{"ticker too long", StockCommentary, `{"ticker":"ABCDEFGHIJK"}`, "ticker"},
		{"malformed json", StockCommentary, `{"ticker":`, "body"},
	}
	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, errs := v.Decode(tt.feature, []byte(tt.body))
			if in != nil {
				t.Fatalf("expected rejection, got %+v", in)
			}
			if len(errs) == 0 || errs[0].Field != tt.field {
				t.Fatalf("errors = %+v, want field %q", errs, tt.field)
			}
			if errs[0].Message == "" {
				t.Fatalf("empty message for %q", tt.field)
			}
		})
	}
}

func TestStockCommentaryUsesToolsTier(t *testing.T) {
	in, errs := NewValidator().Decode(StockCommentary, []byte(`{"ticker":" acme ","question":"outlook?"}`))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if in.Tier() != usage.TierTools {
		t.Fatalf("Tier = %s, want tools", in.Tier())
	}
	p := in.Payload(json.RawMessage(`{"commentary":"flat"}`))
	if p.Stock == nil || p.Stock.Ticker != "ACME" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestFeaturesAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, f := range Features() {
		if seen[f.Path] || seen[string(f.Name)] {
			t.Fatalf("duplicate feature %s %s", f.Name, f.Path)
		}
		seen[f.Path], seen[string(f.Name)] = true, true
		if !json.Valid(f.newInput().Request("u").Tool.Parameters) {
			t.Fatalf("%s tool schema is not valid JSON", f.Name)
		}
	}
}
