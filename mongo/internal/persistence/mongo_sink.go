package persistence

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	corep "github.com/petrijr/grafo/internal/persistence"
	"github.com/petrijr/grafo/pkg/api"
)

// MongoSink is a Store backed by a MongoDB collection.
//
// Each execution log becomes one document. Append order is recovered from
// the driver-generated ObjectIDs, which are monotonic for inserts issued by
// a single process. Timestamps are stored as BSON dates, so sub-millisecond
// precision is not preserved.
type MongoSink struct {
	coll *mongo.Collection
}

// Ensure MongoSink implements Store.
var _ corep.Store = (*MongoSink)(nil)

// NewMongoSink creates a Mongo-backed execution log store.
// dbName defaults to "grafo" if empty, collName defaults to "execution_logs".
func NewMongoSink(client *mongo.Client, dbName, collName string) *MongoSink {
	if dbName == "" {
		dbName = "grafo"
	}
	if collName == "" {
		collName = "execution_logs"
	}

	return &MongoSink{
		coll: client.Database(dbName).Collection(collName),
	}
}

type mongoLogDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	RunID          string             `bson:"run_id"`
	StepName       string             `bson:"step_name"`
	StartedAt      time.Time          `bson:"started_at"`
	EndedAt        time.Time          `bson:"ended_at"`
	Input          []byte             `bson:"input,omitempty"`
	Output         []byte             `bson:"output,omitempty"`
	CapturedOutput string             `bson:"captured_output,omitempty"`
	Error          string             `bson:"error,omitempty"`
}

func (s *MongoSink) Append(ctx context.Context, log api.ExecutionLog) error {
	input, err := corep.EncodeState(log.Input)
	if err != nil {
		return err
	}
	output, err := corep.EncodeState(log.Output)
	if err != nil {
		return err
	}

	doc := mongoLogDoc{
		RunID:          log.RunID,
		StepName:       log.StepName,
		StartedAt:      log.StartedAt.UTC(),
		EndedAt:        log.EndedAt.UTC(),
		Input:          input,
		Output:         output,
		CapturedOutput: log.CapturedOutput,
		Error:          log.Err,
	}

	_, err = s.coll.InsertOne(ctx, doc)
	return err
}

func (s *MongoSink) ListByRun(ctx context.Context, runID string) ([]api.ExecutionLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{"run_id": runID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var logs []api.ExecutionLog
	for cur.Next(ctx) {
		var doc mongoLogDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}

		input, err := corep.DecodeState(doc.Input)
		if err != nil {
			return nil, err
		}
		output, err := corep.DecodeState(doc.Output)
		if err != nil {
			return nil, err
		}

		logs = append(logs, api.ExecutionLog{
			StepName:       doc.StepName,
			RunID:          doc.RunID,
			StartedAt:      doc.StartedAt,
			EndedAt:        doc.EndedAt,
			Input:          input,
			Output:         output,
			CapturedOutput: doc.CapturedOutput,
			Err:            doc.Error,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, corep.ErrNoLogs
	}
	return logs, nil
}

func (s *MongoSink) Runs(ctx context.Context) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$run_id"},
			{Key: "first", Value: bson.D{{Key: "$min", Value: "$_id"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "first", Value: 1}}}},
	}

	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var runs []string
	for cur.Next(ctx) {
		var doc struct {
			RunID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		runs = append(runs, doc.RunID)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
