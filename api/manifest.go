package api

// Manifest describes the latest published firmware image.
type Manifest struct {
	Version   string `json:"version"   yaml:"version"`
	Hash      string `json:"hash"      yaml:"hash"`
	Signature string `json:"signature" yaml:"signature"`
}
