package cosmosdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AndreasM009/entitystore-go/store"
	"github.com/a8m/documentdb"
)

const (
	entityDocumentType   = "entity"
	sequenceDocumentType = "sequence"
)

type cosmosconnectioninfo struct {
	URL        string `json:"url"`
	MasterKey  string `json:"masterKey"`
	Database   string `json:"database"`
	Container  string `json:"container"`
	EntityType string `json:"entityType"`
}

type cosmosdb struct {
	connectionInfo cosmosconnectioninfo
	database       *documentdb.Database
	container      *documentdb.Collection
	client         *documentdb.DocumentDB
}

// The container is expected to be partitioned by /partition.
type cosmosentity struct {
	documentdb.Document
	ID        string `json:"id"`
	EntityID  int64  `json:"entityId"`
	Partition string `json:"partition"`
	Type      string `json:"type"`
	Data      string `json:"data"`
}

type cosmossequence struct {
	documentdb.Document
	ID        string `json:"id"`
	Partition string `json:"partition"`
	Type      string `json:"type"`
	Value     int64  `json:"value"`
}

// NewStore create a new comsosdb backend
func NewStore() store.Backend {
	return &cosmosdb{}
}

func (c *cosmosdb) Init(metadata store.Metadata) error {
	s, err := json.Marshal(metadata.Properties)
	if err != nil {
		return err
	}

	var info cosmosconnectioninfo
	err = json.Unmarshal(s, &info)
	if err != nil {
		return err
	}

	if info.URL == "" || info.EntityType == "" {
		return errors.New("CosmosDB store: url and entityType are required")
	}
	c.connectionInfo = info

	client := documentdb.New(info.URL, &documentdb.Config{
		MasterKey: &documentdb.Key{
			Key: info.MasterKey,
		},
	})

	dbs, err := client.QueryDatabases(&documentdb.Query{
		Query: "SELECT * FROM ROOT r WHERE r.id=@id",
		Parameters: []documentdb.Parameter{
			{Name: "@id", Value: info.Database},
		},
	})

	if err != nil {
		return err
	} else if len(dbs) == 0 {
		return fmt.Errorf("Database %s for CosmosDB store does not exit or was not found", info.Database)
	}

	c.database = &dbs[0]
	cntrs, err := client.QueryCollections(c.database.Self, &documentdb.Query{
		Query: "SELECT * FROM ROOT r WHERE r.id = @id",
		Parameters: []documentdb.Parameter{
			{Name: "@id", Value: info.Container},
		},
	})

	if err != nil {
		return err
	} else if len(cntrs) == 0 {
		return fmt.Errorf("Container %s in Database %s for CosmosDB store not found", info.Container, info.Database)
	}

	c.container = &cntrs[0]
	c.client = client
	return nil
}

func (c *cosmosdb) Put(ctx context.Context, id int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := cosmosentity{
		ID:        makeEntityDocumentID(c.partition(), id),
		EntityID:  id,
		Partition: c.partition(),
		Type:      entityDocumentType,
		Data:      string(data),
	}

	_, err := c.client.UpsertDocument(c.container.Self, doc, c.options()...)
	if err != nil {
		return fmt.Errorf("CosmosDB store: upsert entity %d: %w", id, err)
	}
	return nil
}

func (c *cosmosdb) Get(ctx context.Context, id int64) ([]byte, bool, error) {
	doc, err := c.load(ctx, id)
	if err != nil || doc == nil {
		return nil, false, err
	}
	return []byte(doc.Data), true, nil
}

func (c *cosmosdb) Delete(ctx context.Context, id int64) error {
	doc, err := c.load(ctx, id)
	if err != nil || doc == nil {
		return err
	}

	_, err = c.client.DeleteDocument(doc.Self, c.options()...)
	if err != nil && !hasStatus(err, "404") {
		return fmt.Errorf("CosmosDB store: delete entity %d: %w", id, err)
	}
	return nil
}

func (c *cosmosdb) Scan(ctx context.Context) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := []cosmosentity{}
	_, err := c.client.QueryDocuments(c.container.Self, &documentdb.Query{
		Query: "SELECT * FROM ROOT r WHERE r.partition=@partition and r.type=@type ORDER BY r.entityId",
		Parameters: []documentdb.Parameter{
			{Name: "@partition", Value: c.partition()},
			{Name: "@type", Value: entityDocumentType},
		},
	}, &docs, c.options()...)

	if err != nil {
		return nil, fmt.Errorf("CosmosDB store: scan entities: %w", err)
	}

	records := make([]store.Record, len(docs))
	for i, doc := range docs {
		records[i] = store.Record{ID: doc.EntityID, Data: []byte(doc.Data)}
	}
	return records, nil
}

// NextID increments the sequence document of the partition. The replace is
// conditional on the etag we read, a 412 means someone else was faster.
func (c *cosmosdb) NextID(ctx context.Context) (int64, error) {
	seqID := makeSequenceDocumentID(c.partition())

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		seqs := []cosmossequence{}
		_, err := c.client.QueryDocuments(c.container.Self, &documentdb.Query{
			Query: "SELECT * FROM ROOT r WHERE r.id=@id and r.type=@type",
			Parameters: []documentdb.Parameter{
				{Name: "@id", Value: seqID},
				{Name: "@type", Value: sequenceDocumentType},
			},
		}, &seqs, c.options()...)

		if err != nil {
			return 0, fmt.Errorf("CosmosDB store: load sequence: %w", err)
		}

		if len(seqs) == 0 {
			seq := cosmossequence{
				ID:        seqID,
				Partition: c.partition(),
				Type:      sequenceDocumentType,
				Value:     1,
			}
			_, err = c.client.CreateDocument(c.container.Self, seq, c.options()...)
			if err == nil {
				return 1, nil
			}
			if hasStatus(err, "409") {
				continue
			}
			return 0, fmt.Errorf("CosmosDB store: create sequence: %w", err)
		}

		seq := &seqs[0]
		seq.Value++

		options := append(c.options(), documentdb.IfMatch(seq.Etag))
		_, err = c.client.UpsertDocument(c.container.Self, seq, options...)
		if err == nil {
			return seq.Value, nil
		}
		if !hasStatus(err, "412") {
			return 0, fmt.Errorf("CosmosDB store: advance sequence: %w", err)
		}
	}
}

func (c *cosmosdb) Close() error {
	return nil
}

func (c *cosmosdb) load(ctx context.Context, id int64) (*cosmosentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := []cosmosentity{}
	_, err := c.client.QueryDocuments(c.container.Self, &documentdb.Query{
		Query: "SELECT * FROM ROOT r WHERE r.id=@id and r.type=@type",
		Parameters: []documentdb.Parameter{
			{Name: "@id", Value: makeEntityDocumentID(c.partition(), id)},
			{Name: "@type", Value: entityDocumentType},
		},
	}, &docs, c.options()...)

	if err != nil {
		return nil, fmt.Errorf("CosmosDB store: load entity %d: %w", id, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

func (c *cosmosdb) partition() string {
	return c.connectionInfo.EntityType
}

func (c *cosmosdb) options() []documentdb.CallOption {
	return []documentdb.CallOption{
		documentdb.PartitionKey(c.partition()),
	}
}

// hasStatus reports whether err is a request error for the given status.
// The service reports either the numeric status or its name as code.
func hasStatus(err error, status string) bool {
	code := ""
	var rqerror documentdb.RequestError
	var rqerrorPtr *documentdb.RequestError
	switch {
	case errors.As(err, &rqerror):
		code = rqerror.Code
	case errors.As(err, &rqerrorPtr):
		code = rqerrorPtr.Code
	default:
		return false
	}
	return code == status || code == statusNames[status]
}

var statusNames = map[string]string{
	"404": "NotFound",
	"409": "Conflict",
	"412": "PreconditionFailed",
}

func makeEntityDocumentID(partition string, id int64) string {
	return fmt.Sprintf("%s--%d", partition, id)
}

func makeSequenceDocumentID(partition string) string {
	return fmt.Sprintf("%s--sequence", partition)
}
