package gtypes

// GenesisState is the JSON document embedded in the consensus driver's
// genesis file, executed once by init_chain (§6).
type GenesisState struct {
	Config    Config
	AppConfig AppConfig
	Msgs      []Message
}
