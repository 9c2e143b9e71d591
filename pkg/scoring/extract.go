package scoring

import "strconv"

// extractScore pulls the per-answer score out of an evaluator response.
// The collaborator has shipped the value under several names and sometimes
// as a string, so this is the single place that tolerates every known shape.
// Anything missing or unparsable scores 0 rather than failing the pipeline.
func extractScore(resp map[string]any) float64 {
	if resp == nil {
		return 0
	}
	raw, ok := resp["score"]
	if !ok {
		raw, ok = resp["Score"]
	}
	if !ok {
		if eval, isMap := resp["evaluation"].(map[string]any); isMap {
			raw, ok = eval["score"]
		}
	}
	if !ok {
		return 0
	}
	return clampScore(coerceNumber(raw))
}

func coerceNumber(raw any) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func clampScore(n float64) float64 {
	if n != n { // NaN
		return 0
	}
	if n < 0 {
		return 0
	}
	if n > 10 {
		return 10
	}
	return n
}
