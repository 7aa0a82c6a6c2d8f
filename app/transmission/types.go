package transmission

import "encoding/json"

type Torrent struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Status      int     `json:"status"`
	HashString  string  `json:"hashString"`
	PercentDone float64 `json:"percentDone"`
	UploadRatio float64 `json:"uploadRatio"`
}

var torrentFields = []string{"id", "name", "status", "hashString", "percentDone", "uploadRatio"}

type request struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
	Tag       int64  `json:"tag"`
}

type response struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
	Tag       int64           `json:"tag"`
}

type sessionGetResult struct {
	RPCVersion int `json:"rpc-version"`
}

type torrentAddResult struct {
	Added     *Torrent `json:"torrent-added"`
	Duplicate *Torrent `json:"torrent-duplicate"`
}

type torrentGetResult struct {
	Torrents []Torrent `json:"torrents"`
}
