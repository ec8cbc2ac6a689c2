package llm

import (
	"fmt"
	"strings"
)

// ExtractObject returns the first top-level JSON object embedded in a model
// response. Models occasionally wrap their JSON in prose or code fences; the
// substring between the first '{' and the last '}' is the tolerant reading
// both the pruner and the refiner use before unmarshalling.
func ExtractObject(response string) ([]byte, error) {
	start := strings.IndexByte(response, '{')
	end := strings.LastIndexByte(response, '}')
	if start == -1 || end <= start {
		return nil, fmt.Errorf("llm: no JSON object in response")
	}
	return []byte(response[start : end+1]), nil
}
