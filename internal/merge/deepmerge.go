package merge

import (
	"encoding/json"
	"fmt"
)

// mergeJSON combines two JSON fragments key-wise. Objects are merged
// recursively with incoming keys winning on conflict; anything that is not
// an object on both sides is replaced by the incoming value. An absent
// existing fragment yields the incoming fragment unchanged.
func mergeJSON(existing, incoming json.RawMessage) (json.RawMessage, error) {
	if len(existing) == 0 {
		return incoming, nil
	}

	var dst, src map[string]any
	if err := json.Unmarshal(existing, &dst); err != nil {
		// Existing value is not an object; replace wholesale.
		return incoming, nil
	}
	if err := json.Unmarshal(incoming, &src); err != nil {
		return incoming, nil
	}

	merged, err := json.Marshal(deepMerge(dst, src))
	if err != nil {
		return nil, fmt.Errorf("marshal merged fragment: %w", err)
	}
	return merged, nil
}

// deepMerge merges src into dst recursively and returns dst.
func deepMerge(dst, src map[string]any) map[string]any {
	for key, sv := range src {
		if dv, ok := dst[key]; ok {
			dm, dOK := dv.(map[string]any)
			sm, sOK := sv.(map[string]any)
			if dOK && sOK {
				dst[key] = deepMerge(dm, sm)
				continue
			}
		}
		dst[key] = sv
	}
	return dst
}
