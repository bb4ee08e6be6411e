package models

// OptionKind identifies the side of an option contract.
type OptionKind string

const (
	OptionCall OptionKind = "CALL"
	OptionPut  OptionKind = "PUT"
)

// OptionLeg represents one side (call or put) of an option contract at a
// specific strike, as returned ungrouped by the upstream.
type OptionLeg struct {
	Symbol       string
	Strike       float64
	Kind         OptionKind
	LTP          float64
	Change       float64
	OpenInterest int64
}

// OptionChainRow pairs the call and put legs at a single strike. A row only
// exists when both sides are present for the strike.
type OptionChainRow struct {
	Strike     float64
	CallLTP    float64
	CallChange float64
	CallOI     int64
	PutLTP     float64
	PutChange  float64
	PutOI      int64
}

// ChainSource tags whether a chain was built from upstream data or
// fabricated by the synthesizer.
type ChainSource string

const (
	SourceLive      ChainSource = "live"
	SourceSynthetic ChainSource = "synthetic"
)

// OptionChain represents a strike-sorted option chain for an underlying.
// Source must be surfaced to the UI so fabricated data is never mistaken
// for live data.
type OptionChain struct {
	Symbol string
	Rows   []OptionChainRow
	Source ChainSource
}
