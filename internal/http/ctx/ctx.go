package ctx

import (
	"github.com/valyala/fasthttp"

	"advisorgate/internal/auth"
)

const (
	ClaimsKey    = "claims"
	RequestIDKey = "requestID"
)

func SetClaims(ctx *fasthttp.RequestCtx, claims *auth.Claims) {
	ctx.SetUserValue(ClaimsKey, claims)
}

func ClaimsFromCtx(ctx *fasthttp.RequestCtx) (*auth.Claims, bool) {
	v := ctx.UserValue(ClaimsKey)
	if v == nil {
		return nil, false
	}
	c, ok := v.(*auth.Claims)
	return c, ok && c != nil
}

// UserIDFromCtx returns the verified subject of the request's token.
func UserIDFromCtx(ctx *fasthttp.RequestCtx) (string, bool) {
	c, ok := ClaimsFromCtx(ctx)
	if !ok || c.Subject == "" {
		return "", false
	}
	return c.Subject, true
}

func SetRequestID(ctx *fasthttp.RequestCtx, id string) {
	ctx.SetUserValue(RequestIDKey, id)
}

func RequestIDFromCtx(ctx *fasthttp.RequestCtx) string {
	s, _ := ctx.UserValue(RequestIDKey).(string)
	return s
}
