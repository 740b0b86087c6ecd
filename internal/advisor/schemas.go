package advisor

import "encoding/json"

var websiteSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "score": {"type": "integer", "minimum": 0, "maximum": 100},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "issues": {"type": "array", "items": {"type": "string"}},
    "recommendations": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["summary", "score", "recommendations"]
}`)

var marketSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "overview": {"type": "string"},
    "segments": {"type": "array", "items": {"type": "string"}},
    "competitors": {"type": "array", "items": {"type": "string"}},
    "opportunities": {"type": "array", "items": {"type": "string"}},
    "risks": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["overview", "opportunities"]
}`)

var stockSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "commentary": {"type": "string"},
    "sentiment": {"type": "string", "enum": ["bullish", "neutral", "bearish"]},
    "keyPoints": {"type": "array", "items": {"type": "string"}},
    "disclaimer": {"type": "string"}
  },
  "required": ["commentary", "sentiment"]
}`)
