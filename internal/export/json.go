package export

import "encoding/json"

// JSONArtifact renders any view value as an indented JSON document suitable
// for file download.
func JSONArtifact(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
