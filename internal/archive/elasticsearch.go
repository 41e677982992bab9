// internal/archive/elasticsearch.go
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"rooftrust-engine/internal/common/logger"
	"rooftrust-engine/internal/models"
)

const DefaultIndex = "golden-thread"

// logDocument is the indexed shape of one golden-thread entry.
type logDocument struct {
	ProjectID     string    `json:"projectId"`
	Date          string    `json:"date"`
	Tag           string    `json:"tag"`
	Status        string    `json:"status"`
	PhotoUploaded bool      `json:"photoUploaded"`
	RecordedAt    time.Time `json:"recordedAt"`
	IndexedAt     time.Time `json:"indexedAt"`
}

// Elasticsearch indexes golden-thread entries into a single index.
type Elasticsearch struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticsearch(client *elasticsearch.Client, index string, log logger.Logger) *Elasticsearch {
	if index == "" {
		index = DefaultIndex
	}
	return &Elasticsearch{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "archive", "index": index}),
	}
}

func (a *Elasticsearch) IndexLogEntry(ctx context.Context, projectID string, entry models.DailyLogEntry) error {
	doc := logDocument{
		ProjectID:     projectID,
		Date:          entry.Date,
		Tag:           entry.Tag,
		Status:        entry.Status,
		PhotoUploaded: entry.PhotoUploaded,
		RecordedAt:    entry.RecordedAt,
		IndexedAt:     time.Now().UTC(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal log document: %w", err)
	}

	res, err := a.client.Index(
		a.index,
		bytes.NewReader(body),
		a.client.Index.WithContext(ctx),
		a.client.Index.WithDocumentID(uuid.NewString()),
	)
	if err != nil {
		return fmt.Errorf("index log document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index log document: %s", res.Status())
	}

	a.logger.Debug("indexed golden-thread entry", map[string]interface{}{
		"projectId": projectID,
		"tag":       entry.Tag,
		"date":      entry.Date,
	})
	return nil
}
