package db

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPayloadKnownVariant(t *testing.T) {
	in := Payload{
		Type: PayloadWebsiteAnalysis,
		Website: &WebsiteAnalysis{
			WebsiteURL:   "https://shop.example",
			WebsiteGoals: "more signups",
			AnalysisMode: "deep",
			Result:       json.RawMessage(`{"score":72}`),
		},
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal map: %v", err)
	}
	if doc["type"] != "website_analysis" || doc["websiteUrl"] != "https://shop.example" {
		t.Fatalf("flattened document = %v", doc)
	}

	var out Payload
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !out.Known() || out.Website == nil || out.Website.AnalysisMode != "deep" {
		t.Fatalf("decoded payload = %+v", out)
	}
	if string(out.Result()) != `{"score":72}` {
		t.Fatalf("Result() = %s", out.Result())
	}
}

func TestPayloadUnknownTypeIsPreserved(t *testing.T) {
	raw := []byte(`{"type":"scorecard","items":[1,2,3]}`)

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.Known() || p.Type != "scorecard" {
		t.Fatalf("expected unknown scorecard variant, got %+v", p)
	}

	again, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(again) != string(raw) {
		t.Fatalf("round trip = %s, want %s", again, raw)
	}
}

func TestPayloadBoundaryValidation(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want error
	}{
		"untyped":        {`{"ticker":"AAPL"}`, ErrUntypedPayload},
		"missing ticker": {`{"type":"stock_commentary"}`, ErrInvalidPayload},
		"missing url":    {`{"type":"website_analysis","analysisMode":"standard"}`, ErrInvalidPayload},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var p Payload
			err := json.Unmarshal([]byte(tc.doc), &p)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Unmarshal(%s) err = %v, want %v", tc.doc, err, tc.want)
			}
		})
	}

	if _, err := json.Marshal(Payload{Type: PayloadMarketResearch}); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("Marshal without body err = %v, want ErrInvalidPayload", err)
	}
}
