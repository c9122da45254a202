// Package merge folds a partial canonical document into a stored one.
package merge

import (
	"reflect"

	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

// Apply returns stored with incoming folded in. For every top-level key of
// incoming: when both sides hold an object the two are merged one level deep,
// otherwise the incoming value replaces the stored one (an empty string is an
// explicit clear). Keys absent from incoming keep their stored value. Neither
// argument is modified and the result shares no maps with them.
func Apply(stored, incoming types.Document) types.Document {
	out := stored.Clone()
	for key, in := range incoming {
		inObj, inIsObj := in.(map[string]any)
		if !inIsObj {
			out[key] = in
			continue
		}
		merged := map[string]any{}
		if storedObj, ok := out[key].(map[string]any); ok {
			for sk, sv := range storedObj {
				merged[sk] = sv
			}
		}
		for sk, sv := range inObj {
			merged[sk] = sv
		}
		out[key] = merged
	}
	return out
}

// Changed reports whether applying incoming to stored would alter anything.
func Changed(stored, incoming types.Document) bool {
	for key, in := range incoming {
		cur, exists := stored[key]
		if !exists {
			return true
		}
		inObj, inIsObj := in.(map[string]any)
		curObj, curIsObj := cur.(map[string]any)
		switch {
		case inIsObj && curIsObj:
			for sk, sv := range inObj {
				if cv, ok := curObj[sk]; !ok || !reflect.DeepEqual(cv, sv) {
					return true
				}
			}
		case inIsObj != curIsObj:
			return true
		default:
			if !reflect.DeepEqual(cur, in) {
				return true
			}
		}
	}
	return false
}
