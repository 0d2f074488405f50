package predict

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/sqlite-ml/vector"
)

func decodeMatchArg(v interface{}) ([]float64, error) {
	switch val := v.(type) {
	case []byte:
		p, err := vector.DecodePoint(val)
		if err != nil {
			return nil, err
		}
		if len(p) == 0 {
			return nil, fmt.Errorf("%s: MATCH point is empty", ModuleName)
		}
		return p, nil
	case string:
		return decodeMatchString(val)
	default:
		return nil, fmt.Errorf("%s: expected MATCH arg as BLOB or string, got %T", ModuleName, v)
	}
}

func decodeMatchString(raw string) ([]float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("%s: MATCH string is empty", ModuleName)
	}
	if strings.HasPrefix(s, "[") {
		var coords []float64
		if err := json.Unmarshal([]byte(s), &coords); err != nil {
			return nil, fmt.Errorf("%s: invalid MATCH JSON %q: %w", ModuleName, s, err)
		}
		if len(coords) == 0 {
			return nil, fmt.Errorf("%s: MATCH point is empty", ModuleName)
		}
		return coords, nil
	}
	parts := strings.Split(s, ",")
	coords := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid MATCH float %q: %w", ModuleName, p, err)
		}
		coords = append(coords, f)
	}
	if len(coords) == 0 {
		return nil, fmt.Errorf("%s: MATCH string must be a JSON or CSV number list", ModuleName)
	}
	return coords, nil
}
