package aquarius

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MaxUniqueIDsPerRequest is the most unique ids the service accepts in one
// description request.
const MaxUniqueIDsPerRequest = 50

// ChunkStrings splits values into consecutive chunks of at most size
// elements. An empty input yields no chunks.
func ChunkStrings(values []string, size int) [][]string {
	if size <= 0 {
		size = MaxUniqueIDsPerRequest
	}
	var chunks [][]string
	for i := 0; i < len(values); i += size {
		end := i + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[i:end])
	}
	return chunks
}

// NormalizeUniqueID validates a vendor unique id and returns it in the
// service's dashless lowercase form.
func NormalizeUniqueID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", fmt.Errorf("invalid time series unique id %q: %w", id, err)
	}
	return strings.ReplaceAll(parsed.String(), "-", ""), nil
}
