package tablestorage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/AndreasM009/entitystore-go/store"
	"github.com/Azure/azure-sdk-for-go/storage"
)

const (
	entityTableName   = "entitystoreentities"
	sequenceTableName = "entitystoresequences"
	sequenceRowKey    = "sequence"
	timeout           = 10

	// metadata properties
	storageAccountName = "storageAccountName"
	storageAccountKey  = "storageAccountKey"
	tableNameSuffix    = "tableNameSuffix"
	entityType         = "entityType"
)

type (
	tablestore struct {
		client            storage.Client
		entityTableName   string
		sequenceTableName string
		partition         string
	}
)

// NewStore creates a new Azure Table Storage based backend.
// Entities of one type share a partition, the row key is the zero padded id.
func NewStore() store.Backend {
	return &tablestore{}
}

func (s *tablestore) Init(metadata store.Metadata) error {
	account := metadata.Properties[storageAccountName]
	key := metadata.Properties[storageAccountKey]
	if account == "" || key == "" {
		return errors.New("tablestore: storage account name and key are required")
	}

	s.partition = metadata.Properties[entityType]
	if s.partition == "" {
		return errors.New("tablestore: entity type is required")
	}

	suffix := metadata.Properties[tableNameSuffix]
	s.entityTableName = fmt.Sprintf("%s%s", entityTableName, suffix)
	s.sequenceTableName = fmt.Sprintf("%s%s", sequenceTableName, suffix)

	client, err := storage.NewBasicClient(account, key)
	if err != nil {
		return err
	}

	s.client = client

	for _, tbl := range []*storage.Table{s.getEntityTable(), s.getSequenceTable()} {
		if err := tbl.Get(timeout, storage.FullMetadata); err != nil {
			if err := tbl.Create(timeout, storage.EmptyPayload, nil); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *tablestore) Put(ctx context.Context, id int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ety := s.getEntityTable().GetEntityReference(s.partition, rowKey(id))
	ety.Properties = map[string]interface{}{
		"data": string(data),
	}

	return ety.InsertOrReplace(nil)
}

func (s *tablestore) Get(ctx context.Context, id int64) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	ety := s.getEntityTable().GetEntityReference(s.partition, rowKey(id))
	if err := ety.Get(timeout, storage.FullMetadata, nil); err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	data, err := dataOf(ety)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *tablestore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ety := s.getEntityTable().GetEntityReference(s.partition, rowKey(id))
	if err := ety.Delete(true, nil); err != nil && statusCode(err) != http.StatusNotFound {
		return err
	}
	return nil
}

func (s *tablestore) Scan(ctx context.Context) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	options := &storage.QueryOptions{
		Filter: fmt.Sprintf("PartitionKey eq '%s'", s.partition),
	}

	res, err := s.getEntityTable().QueryEntities(timeout, storage.FullMetadata, options)
	if err != nil {
		return nil, err
	}

	var records []store.Record
	for {
		for _, ety := range res.Entities {
			id, err := strconv.ParseInt(ety.RowKey, 10, 64)
			if err != nil {
				return nil, err
			}
			data, err := dataOf(ety)
			if err != nil {
				return nil, err
			}
			records = append(records, store.Record{ID: id, Data: data})
		}

		if res.NextLink == nil {
			return records, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if res, err = res.NextResults(nil); err != nil {
			return nil, err
		}
	}
}

// NextID increments the sequence row of the partition.
// The update carries the etag of the row we read, so a concurrent increment
// makes it fail with 412 and we read again.
func (s *tablestore) NextID(ctx context.Context) (int64, error) {
	tbl := s.getSequenceTable()

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		sety := tbl.GetEntityReference(s.partition, sequenceRowKey)

		// load full metadata, to check etag in update
		if err := sety.Get(timeout, storage.FullMetadata, nil); err != nil {
			if statusCode(err) != http.StatusNotFound {
				return 0, err
			}

			sety.Properties = map[string]interface{}{"value": int64(1)}
			err = sety.Insert(storage.EmptyPayload, nil)
			if err == nil {
				return 1, nil
			}
			if statusCode(err) == http.StatusConflict {
				continue
			}
			return 0, err
		}

		value, ok := sety.Properties["value"].(int64)
		if !ok {
			return 0, errors.New("tablestore: invalid type assertion for sequence value")
		}

		value++
		sety.Properties["value"] = value

		if err := sety.Update(false, nil); err != nil {
			if statusCode(err) == http.StatusPreconditionFailed {
				continue
			}
			return 0, err
		}

		return value, nil
	}
}

func (s *tablestore) Close() error {
	return nil
}

func (s *tablestore) getSequenceTable() *storage.Table {
	svc := s.client.GetTableService()
	return svc.GetTableReference(s.sequenceTableName)
}

func (s *tablestore) getEntityTable() *storage.Table {
	svc := s.client.GetTableService()
	return svc.GetTableReference(s.entityTableName)
}

// row keys sort lexically, padding keeps that equal to numeric order
func rowKey(id int64) string {
	return fmt.Sprintf("%019d", id)
}

func dataOf(ety *storage.Entity) ([]byte, error) {
	data, ok := ety.Properties["data"].(string)
	if !ok {
		return nil, fmt.Errorf("tablestore: entity %s has no data", ety.RowKey)
	}
	return []byte(data), nil
}

func statusCode(err error) int {
	var serr storage.AzureStorageServiceError
	if errors.As(err, &serr) {
		return serr.StatusCode
	}
	var perr *storage.AzureStorageServiceError
	if errors.As(err, &perr) {
		return perr.StatusCode
	}
	return 0
}
