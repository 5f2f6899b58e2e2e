package cosmos

// Response payloads of the CometBFT json-rpc endpoints this watcher uses.

type StatusResult struct {
	SyncInfo struct {
		LatestBlockHeight string `json:"latest_block_height"`
	} `json:"sync_info"`
}

type BlockResults struct {
	Height     string      `json:"height"`
	TxsResults []*TxResult `json:"txs_results"`
}

type TxResult struct {
	Code   uint32  `json:"code"`
	Events []Event `json:"events"`
}

type Event struct {
	Type       string           `json:"type"`
	Attributes []EventAttribute `json:"attributes"`
}

type EventAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (e Event) Attribute(key string) (string, bool) {
	for _, attr := range e.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}

	return "", false
}
