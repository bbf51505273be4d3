package core

type Config struct {
	Dir string // repo root

	Store     StoreConfig
	Transform TransformConfig
	Limits    LimitsConfig
}

type StoreConfig struct {
	Dir        string
	SyncWrites bool
}

type TransformConfig struct {
	Name      string
	ZstdLevel int
}

type LimitsConfig struct {
	MaxEncodedBytes uint64 // per-value cap enforced by the store; 0 = unlimited
	MaxDepth        int    // decoder recursion limit; 0 = default
}
