package domain

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Identifier is implemented by records that expose their own id.
type Identifier interface {
	Identity() string
}

// NormalizeID turns the accepted id shapes into a canonical string.
// Accepted: string, signed/unsigned integers, integral float64, json.Number,
// map[string]any with an "id" or "_id" entry, and Identifier.
// The boolean is false when v is none of these or resolves to an empty id.
func NormalizeID(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return nonEmpty(strings.TrimSpace(t))
	case int:
		return strconv.FormatInt(int64(t), 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t != math.Trunc(t) {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', 0, 64), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		return "", false
	case map[string]any:
		if id, ok := t["id"]; ok {
			return NormalizeID(id)
		}
		if id, ok := t["_id"]; ok {
			return NormalizeID(id)
		}
		return "", false
	case Identifier:
		return nonEmpty(strings.TrimSpace(t.Identity()))
	}
	return "", false
}

func nonEmpty(s string) (string, bool) {
	return s, s != ""
}

type principalKey struct{}

// WithPrincipal attaches the caller to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller attached to ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.ID != ""
}
