package models

import "time"

// SubtitleRecord is a row of the relational source table.
type SubtitleRecord struct {
	Num     int64
	Name    string
	Content []byte
}

// Record is one row of the extracted and cleaned columnar files. Num is the
// identity of a subtitle document through every stage.
type Record struct {
	Num       int64  `parquet:"num"`
	Name      string `parquet:"name"`
	Subtitles string `parquet:"subtitles"`
}

// IndexedChunk is what the indexer upserts into the vector store.
type IndexedChunk struct {
	ID        string
	Document  string
	Metadata  map[string]string
	Embedding []float32
}

// Name returns the source filename carried in the chunk metadata.
func (c IndexedChunk) Name() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata["name"]
}

// SearchHit is a nearest-neighbour result from the vector store.
type SearchHit struct {
	ID       string
	Document string
	Name     string
	Distance float64
}

// MovieMatch is a ranked query result presented to the chat layer.
type MovieMatch struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	ID    string  `json:"id"`
	Name  string  `json:"name"`
}

type ChatMessage struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatTurn struct {
	SessionID string
	Query     string
	Response  string
	CreatedAt time.Time
}

type Session struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}
