package api

// StageMetric is published once a pipeline stage has concluded.
type StageMetric struct {
	Stage     string `json:"stage"      yaml:"stage"`
	ElapsedMS int64  `json:"elapsed_ms" yaml:"elapsed_ms"`
	FreeHeap  uint64 `json:"free_heap"  yaml:"free_heap"`
	Algorithm string `json:"algorithm"  yaml:"algorithm"`
	Timestamp string `json:"timestamp"  yaml:"timestamp"`
}

// SignatureAlgorithm is the only signature scheme supported for firmware images.
const SignatureAlgorithm = "ed25519"
