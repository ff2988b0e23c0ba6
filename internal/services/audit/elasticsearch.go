// internal/services/audit/elasticsearch.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"scholarship-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultIndex = "scholarship-audit"

// ElasticsearchSink indexes audit events by id, so re-indexing the same event overwrites it.
type ElasticsearchSink struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchSink(client *elasticsearch.Client, index string) *ElasticsearchSink {
	if index == "" {
		index = DefaultIndex
	}
	return &ElasticsearchSink{client: client, index: index}
}

func (s *ElasticsearchSink) Index(ctx context.Context, event *models.AuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: event.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index audit event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index audit event: %s", res.String())
	}
	return nil
}
