// Package deploydao records deployment history in DynamoDB: one record per
// deployment run of a stack, plus a "latest" magic record per stack/env for
// efficient latest-deployment queries.
package deploydao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/gox/slicex"
)

const latest = "latest"

// PK represents a DynamoDB partition key in format {stack}/{env}
// Example: agent-b-mcps/dev
type PK string

// NewPK creates a new partition key from stack and env
func NewPK(stack, env string) PK {
	return PK(fmt.Sprintf("%s/%s", stack, env))
}

// ParsePK parses a partition key into its stack and env components
func ParsePK(pk PK) (stack, env string, err error) {
	s := string(pk)
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid PK format: %s, expected {stack}/{env}", s)
	}
	return parts[0], parts[1], nil
}

// String returns the string representation of the partition key
func (pk PK) String() string {
	return string(pk)
}

// ID represents a deployment ID in format {stack}/{env}:{ksuid}
type ID string

func (id ID) String() string {
	return string(id)
}

// ParseID parses a deployment ID into its partition key (pk) and sort key (sk) components
func ParseID(id ID) (pk PK, sk string, err error) {
	s := string(id)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid deployment ID format: %s, expected {stack}/{env}:{ksuid}", s)
	}
	return PK(parts[0]), parts[1], nil
}

// NewID constructs an ID from partition key and sort key
func NewID(pk PK, sk string) ID {
	return ID(fmt.Sprintf("%s:%s", pk, sk))
}

// Status represents the current status of a deployment
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// Record represents one deployment run in DynamoDB
type Record struct {
	PK         PK      `ddb:"hash" dynamodbav:"pk"`  // {stack}/{env} - DynamoDB partition key
	SK         string  `ddb:"range" dynamodbav:"sk"` // KSUID - DynamoDB sort key
	ID         ID      `dynamodbav:"id,omitempty"`   // ID is only used for latest entries
	Stack      string  `dynamodbav:"stack,omitempty"`
	Env        string  `dynamodbav:"env,omitempty"`
	Repository string  `dynamodbav:"repository,omitempty"` // durable ECR repository name
	Tag        string  `dynamodbav:"tag,omitempty"`        // destination tag used for promotion
	ImageURI   string  `dynamodbav:"image_uri,omitempty"`  // promoted {repository-uri}:{tag}
	Status     Status  `dynamodbav:"status,omitempty"`
	ErrorMsg   *string `dynamodbav:"error_msg,omitempty"`
	CreatedAt  int64   `dynamodbav:"created_at,omitempty"`
	FinishedAt *int64  `dynamodbav:"finished_at,omitempty"`
	UpdatedAt  int64   `dynamodbav:"updated_at,omitempty"`
}

// GetID returns the full deployment ID in format: {stack}/{env}:{ksuid}
func (r *Record) GetID() ID {
	if r.ID != "" {
		return r.ID
	}
	return NewID(r.PK, r.SK)
}

// CreateInput contains the fields needed to create a new deployment record
type CreateInput struct {
	Stack      string // Stack name
	Env        string // Environment (dev, stg, prd)
	SK         string // KSUID sort key
	Repository string // Durable ECR repository name
	Tag        string // Destination tag
	ImageURI   string // Promoted image URI
}

// UpdateInput contains the fields that can be updated on a deployment record
type UpdateInput struct {
	PK       PK      // Partition key (stack/env)
	SK       string  // Sort key (KSUID)
	Status   *Status // New status
	ErrorMsg *string // Error message (optional)
}

// DAO provides data access operations for deployment records
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// Create creates a new deployment record with initial status PENDING
func (d *DAO) Create(ctx context.Context, input CreateInput) (Record, error) {
	pk := NewPK(input.Stack, input.Env)
	now := time.Now().Unix()

	record := Record{
		PK:         pk,
		SK:         input.SK,
		Stack:      input.Stack,
		Env:        input.Env,
		Repository: input.Repository,
		Tag:        input.Tag,
		ImageURI:   input.ImageURI,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := d.table.Put(&record).RunWithContext(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("failed to create deployment record: %w", err)
	}

	return record, nil
}

// Find retrieves a deployment record by ID
// Returns an error if not found or if there's a database error
func (d *DAO) Find(ctx context.Context, id ID) (Record, error) {
	pk, sk, err := ParseID(id)
	if err != nil {
		return Record{}, err
	}

	var record Record

	err = d.table.Get(pk.String()).
		Range(sk).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return Record{}, fmt.Errorf("deployment record not found: %s", id)
		}
		return Record{}, fmt.Errorf("failed to find deployment record: %w", err)
	}

	// If all fields are empty, item doesn't exist
	if record.PK == "" && record.SK == "" {
		return Record{}, fmt.Errorf("deployment record not found: %s", id)
	}

	return record, nil
}

// UpdateStatus updates the status of a deployment record and creates/updates a "latest" magic record
// The latest record has pk=latest/{env} and sk={original pk} to enable efficient queries for latest deployments
func (d *DAO) UpdateStatus(ctx context.Context, input UpdateInput) error {
	if input.Status == nil {
		return fmt.Errorf("status is required")
	}

	now := time.Now().Unix()

	update := d.table.Update(input.PK).
		Range(input.SK).
		Set("#Status = ?", string(*input.Status)).
		Set("#UpdatedAt = ?", now)

	// Set finishedAt for terminal states (SUCCESS or FAILED)
	if *input.Status == StatusSuccess || *input.Status == StatusFailed {
		update = update.Set("#FinishedAt = ?", now)
	}

	if input.ErrorMsg != nil {
		update = update.Set("#ErrorMsg = ?", *input.ErrorMsg)
	}

	stack, env, err := ParsePK(input.PK)
	if err != nil {
		return fmt.Errorf("failed to parse PK: %w", err)
	}

	latestRecord := &Record{
		PK:        NewPK(latest, env),
		SK:        input.PK.String(), // SK in latest record = PK from original (stack/env identifier)
		ID:        NewID(input.PK, input.SK),
		Stack:     stack,
		Env:       env,
		Status:    *input.Status,
		UpdatedAt: now,
	}

	// Write both the update and the latest record in a transaction
	put := d.table.Put(latestRecord)

	if _, err := d.db.TransactWriteItemsWithContext(ctx, update, put); err != nil {
		return err
	}

	return nil
}

// Query returns all deployments for a given stack/env partition key
func (d *DAO) Query(ctx context.Context, pk PK) ([]Record, error) {
	var records []Record

	err := d.table.Query("#PK = ?", pk.String()).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}

	return records, nil
}

// QueryByStackEnv returns all deployments for a given stack and environment
func (d *DAO) QueryByStackEnv(ctx context.Context, stack, env string) ([]Record, error) {
	pk := NewPK(stack, env)
	return d.Query(ctx, pk)
}

// QueryLatest returns the latest deployment for each stack in the given environment
// It queries the "latest" magic records where pk=latest/{env} and sk={stack}/{env}
func (d *DAO) QueryLatest(ctx context.Context, env string) ([]Record, error) {
	pk := NewPK(latest, env)
	var records []Record

	err := d.table.Query("#PK = ?", pk).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest deployments: %w", err)
	}

	ids := slicex.Map(records, func(r Record) ID { return r.GetID() })

	// Load full deployment records for each ID
	deployments := make([]Record, 0, len(ids))
	for _, id := range ids {
		record, err := d.Find(ctx, id)
		if err != nil {
			// Skip records that are not found (may have been deleted)
			continue
		}
		deployments = append(deployments, record)
	}

	return deployments, nil
}
