package tablestore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

// AzureStore работает с Azure Table Storage.
type AzureStore struct {
	client *aztables.ServiceClient
}

// NewAzureStore создаёт клиент Azure Table Storage по строке подключения.
func NewAzureStore(connectionString string) (*AzureStore, error) {
	client, err := aztables.NewServiceClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create table service client: %w", err)
	}
	return &AzureStore{client: client}, nil
}

// Table возвращает клиент таблицы с указанным именем.
func (s *AzureStore) Table(name string) Table {
	return &azureTable{client: s.client.NewClient(name)}
}

// Close ничего не делает: клиент Azure не держит соединений.
func (s *AzureStore) Close() error { return nil }

type azureTable struct {
	client *aztables.Client
}

func (t *azureTable) Get(ctx context.Context, partitionKey, rowKey string) (*Entity, error) {
	resp, err := t.client.GetEntity(ctx, partitionKey, rowKey, nil)
	if err != nil {
		return nil, mapAzureError(err)
	}

	e, err := decodeAzureEntity(resp.Value)
	if err != nil {
		return nil, err
	}
	e.ETag = string(resp.ETag)
	return e, nil
}

func (t *azureTable) Insert(ctx context.Context, e Entity) error {
	body, err := encodeAzureEntity(e)
	if err != nil {
		return err
	}
	if _, err := t.client.AddEntity(ctx, body, nil); err != nil {
		return mapAzureError(err)
	}
	return nil
}

func (t *azureTable) Replace(ctx context.Context, e Entity) error {
	body, err := encodeAzureEntity(e)
	if err != nil {
		return err
	}

	etag := azcore.ETag(e.ETag)
	_, err = t.client.UpdateEntity(ctx, body, &aztables.UpdateEntityOptions{
		IfMatch:    &etag,
		UpdateMode: aztables.UpdateModeReplace,
	})
	if err != nil {
		return mapAzureError(err)
	}
	return nil
}

func (t *azureTable) Query(ctx context.Context, partitionKey, continuation string, limit int) (Page, error) {
	nextPK, nextRK, err := decodeAzureToken(continuation)
	if err != nil {
		return Page{}, err
	}

	filter := fmt.Sprintf("PartitionKey eq '%s'", strings.ReplaceAll(partitionKey, "'", "''"))
	opts := &aztables.ListEntitiesOptions{
		Filter:           &filter,
		NextPartitionKey: nextPK,
		NextRowKey:       nextRK,
	}
	if limit > 0 {
		top := int32(limit)
		opts.Top = &top
	}

	pager := t.client.NewListEntitiesPager(opts)
	resp, err := pager.NextPage(ctx)
	if err != nil {
		return Page{}, mapAzureError(err)
	}

	page := Page{Entities: make([]Entity, 0, len(resp.Entities))}
	for _, raw := range resp.Entities {
		e, err := decodeAzureEntity(raw)
		if err != nil {
			return Page{}, err
		}
		page.Entities = append(page.Entities, *e)
	}
	page.Continuation = encodeAzureToken(resp.NextPartitionKey, resp.NextRowKey)
	return page, nil
}

func mapAzureError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusPreconditionFailed:
			return ErrConflict
		case http.StatusConflict:
			return ErrAlreadyExists
		}
		return fmt.Errorf("table service status=%d code=%s: %w", respErr.StatusCode, respErr.ErrorCode, err)
	}
	return fmt.Errorf("table service: %w", err)
}

func encodeAzureEntity(e Entity) ([]byte, error) {
	edm := aztables.EDMEntity{
		Entity: aztables.Entity{
			PartitionKey: e.PartitionKey,
			RowKey:       e.RowKey,
		},
		Properties: toEDMProperties(e.Properties),
	}
	b, err := json.Marshal(edm)
	if err != nil {
		return nil, fmt.Errorf("marshal entity: %w", err)
	}
	return b, nil
}

func decodeAzureEntity(raw []byte) (*Entity, error) {
	var edm aztables.EDMEntity
	if err := json.Unmarshal(raw, &edm); err != nil {
		return nil, fmt.Errorf("unmarshal entity: %w", err)
	}
	return &Entity{
		PartitionKey: edm.PartitionKey,
		RowKey:       edm.RowKey,
		ETag:         edm.ETag,
		Timestamp:    time.Time(edm.Timestamp).UTC(),
		Properties:   fromEDMProperties(edm.Properties),
	}, nil
}

// toEDMProperties приводит значения к типам, которые SDK сериализует с аннотациями Edm.
// Azure не хранит null, поэтому пустые значения пропускаются.
func toEDMProperties(p Properties) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		switch val := v.(type) {
		case nil:
		case time.Time:
			out[k] = aztables.EDMDateTime(val.UTC())
		case *time.Time:
			if val != nil {
				out[k] = aztables.EDMDateTime(val.UTC())
			}
		case int:
			out[k] = int32(val)
		case int64:
			out[k] = aztables.EDMInt64(val)
		default:
			out[k] = v
		}
	}
	return out
}

func fromEDMProperties(p map[string]any) Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		switch val := v.(type) {
		case aztables.EDMDateTime:
			out[k] = time.Time(val).UTC()
		case aztables.EDMInt64:
			out[k] = int64(val)
		default:
			out[k] = v
		}
	}
	return out
}

func encodeAzureToken(partitionKey, rowKey *string) string {
	if partitionKey == nil || *partitionKey == "" {
		return ""
	}
	rk := ""
	if rowKey != nil {
		rk = *rowKey
	}
	return base64.RawURLEncoding.EncodeToString([]byte(*partitionKey + "\x00" + rk))
}

func decodeAzureToken(token string) (*string, *string, error) {
	if token == "" {
		return nil, nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidContinuation, err)
	}
	pk, rk, ok := strings.Cut(string(b), "\x00")
	if !ok {
		return nil, nil, ErrInvalidContinuation
	}
	return &pk, &rk, nil
}
